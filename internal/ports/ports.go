package ports

import (
	"context"

	"FeedbackAnalyzer/internal/domain"
)

// Completer is the text-completion oracle: prompt in, generated text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// FeedbackWriter persists enriched records.
type FeedbackWriter interface {
	Insert(ctx context.Context, record domain.EnrichedRecord) (int64, error)
}

// FeedbackReader serves the dashboard read model.
type FeedbackReader interface {
	List(ctx context.Context, filter domain.FeedbackFilter, page domain.PageRequest) (domain.FeedbackPage, error)
	Get(ctx context.Context, id int64) (domain.StoredFeedback, error)
	Documents(ctx context.Context) ([]domain.DocumentSummary, error)
	Sections(ctx context.Context, document string) ([]string, error)
	KeywordCounts(ctx context.Context, filter domain.FeedbackFilter, limit int) ([]domain.KeywordCount, error)
	Analytics(ctx context.Context, filter domain.FeedbackFilter) (domain.Analytics, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// FeedbackRepository is the full record store contract.
type FeedbackRepository interface {
	FeedbackWriter
	FeedbackReader
	EnsureSchema(ctx context.Context) error
}

// FeedbackProcessor enriches and persists a single item.
type FeedbackProcessor interface {
	Process(ctx context.Context, item domain.FeedbackItem) error
}

// BulkScheduler accepts a submission for detached processing.
type BulkScheduler interface {
	Schedule(submission domain.BulkSubmission) (string, error)
}

// PipelineMetrics records per-item and per-transform outcomes.
type PipelineMetrics interface {
	ItemProcessed(outcome string)
	TransformFallback(transform string)
	BulkComment(outcome string)
}

// ExecutorMetrics records offload pool activity.
type ExecutorMetrics interface {
	QueueDepth(n int)
	InFlight(n int)
	CallDuration(seconds float64)
	Rejected()
}
