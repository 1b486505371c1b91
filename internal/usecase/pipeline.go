package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"FeedbackAnalyzer/internal/domain"
	"FeedbackAnalyzer/internal/ports"
)

const (
	outcomeSuccess = "success"
	outcomeFailed  = "failed"
)

// PipelineDeps wires the driven adapters into the enrichment pipeline.
// Oracle must already be routed through the offload executor.
type PipelineDeps struct {
	Oracle  ports.Completer
	Store   ports.FeedbackWriter
	Metrics ports.PipelineMetrics
	Logger  *slog.Logger
}

// Pipeline implements the feedback enrichment workflow: language check,
// optional translation, then summary, sentiment and keywords in parallel.
type Pipeline struct {
	oracle  ports.Completer
	store   ports.FeedbackWriter
	metrics ports.PipelineMetrics
	logger  *slog.Logger
}

var _ ports.FeedbackProcessor = (*Pipeline)(nil)

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		oracle:  deps.Oracle,
		store:   deps.Store,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Process enriches item and persists the result. It fails only when the
// language check, the translation or the store fails.
func (p *Pipeline) Process(ctx context.Context, item domain.FeedbackItem) error {
	if p.store == nil {
		return fmt.Errorf("record store is not configured")
	}

	record, err := p.Enrich(ctx, item)
	if err != nil {
		p.finish(item, outcomeFailed, err)
		return err
	}

	id, err := p.store.Insert(ctx, record)
	if err != nil {
		err = fmt.Errorf("persist feedback: %w", err)
		p.finish(item, outcomeFailed, err)
		return err
	}

	p.finish(item, outcomeSuccess, nil, "id", id, "translated", record.TranslatedFeedback != nil, "sentiment", record.Sentiment)
	return nil
}

// Enrich runs every oracle-backed transform and assembles the record
// without persisting it.
func (p *Pipeline) Enrich(ctx context.Context, item domain.FeedbackItem) (domain.EnrichedRecord, error) {
	if p.oracle == nil {
		return domain.EnrichedRecord{}, fmt.Errorf("oracle is not configured")
	}

	text := item.Text()
	answer, err := p.oracle.Complete(ctx, render(englishCheckPrompt, text))
	if err != nil {
		return domain.EnrichedRecord{}, fmt.Errorf("detect language: %w", err)
	}

	var translated *string
	if !isEnglish(answer) {
		out, err := p.oracle.Complete(ctx, render(translatePrompt, text))
		if err != nil {
			return domain.EnrichedRecord{}, fmt.Errorf("translate feedback: %w", err)
		}
		translated = &out
		text = out
	}

	summary, sentiment, keywords := p.enrich(ctx, text)

	return domain.EnrichedRecord{
		Document:           item.Document,
		Section:            item.Section,
		Feedback:           item.Feedback,
		TranslatedFeedback: translated,
		Summary:            p.fallback("summary", summary, summaryFallback),
		Sentiment:          p.fallbackSentiment(sentiment),
		Keywords:           p.fallbackKeywords(keywords),
	}, nil
}

// enrich starts the three independent transforms together and joins them.
func (p *Pipeline) enrich(ctx context.Context, text string) (result[string], result[domain.Sentiment], result[[]string]) {
	var (
		wg        sync.WaitGroup
		summary   result[string]
		sentiment result[domain.Sentiment]
		keywords  result[[]string]
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		summary.value, summary.err = p.oracle.Complete(ctx, render(summarizePrompt, text))
	}()
	go func() {
		defer wg.Done()
		out, err := p.oracle.Complete(ctx, render(sentimentPrompt, text))
		sentiment = result[domain.Sentiment]{value: parseSentiment(out), err: err}
	}()
	go func() {
		defer wg.Done()
		out, err := p.oracle.Complete(ctx, render(keywordsPrompt, text))
		keywords = result[[]string]{value: parseKeywords(out), err: err}
	}()
	wg.Wait()

	return summary, sentiment, keywords
}

func (p *Pipeline) fallback(transform string, r result[string], fallback string) string {
	v, ok := r.or(fallback)
	if !ok {
		p.degraded(transform, r.err)
	}
	return v
}

func (p *Pipeline) fallbackSentiment(r result[domain.Sentiment]) domain.Sentiment {
	v, ok := r.or(domain.SentimentNeutral)
	if !ok {
		p.degraded("sentiment", r.err)
	}
	return v
}

func (p *Pipeline) fallbackKeywords(r result[[]string]) []string {
	v, ok := r.or([]string{})
	if !ok {
		p.degraded("keywords", r.err)
	}
	return v
}

func (p *Pipeline) degraded(transform string, err error) {
	if p.metrics != nil {
		p.metrics.TransformFallback(transform)
	}
	if p.logger != nil {
		p.logger.Warn("transform failed, using fallback", "transform", transform, "error", err)
	}
}

func (p *Pipeline) finish(item domain.FeedbackItem, outcome string, err error, args ...any) {
	if p.metrics != nil {
		p.metrics.ItemProcessed(outcome)
	}
	if p.logger == nil {
		return
	}

	args = append([]any{"document", item.Document, "section", item.Section}, args...)
	if err != nil {
		p.logger.Error("feedback processing failed", append(args, "error", err)...)
		return
	}
	p.logger.Info("feedback processed", args...)
}
