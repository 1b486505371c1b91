package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"FeedbackAnalyzer/internal/domain"
	"FeedbackAnalyzer/internal/infrastructure/parser"
	"FeedbackAnalyzer/internal/ports"
)

const (
	defaultBulkQueueSize = 64

	bulkProcessed = "processed"
	bulkFailed    = "failed"
	bulkSkipped   = "skipped"
)

var (
	// ErrBusy is returned when the submission queue is full.
	ErrBusy = errors.New("bulk dispatcher is busy")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("bulk dispatcher is stopped")
)

type bulkJob struct {
	id         string
	submission domain.BulkSubmission
}

// BulkDispatcher feeds bulk submissions to the pipeline in the background,
// one comment at a time.
type BulkDispatcher struct {
	processor ports.FeedbackProcessor
	metrics   ports.PipelineMetrics
	logger    *slog.Logger

	queue chan bulkJob
	done  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

var _ ports.BulkScheduler = (*BulkDispatcher)(nil)

// NewBulkDispatcher returns a dispatcher with a queue of queueSize submissions.
func NewBulkDispatcher(processor ports.FeedbackProcessor, queueSize int, metrics ports.PipelineMetrics, logger *slog.Logger) *BulkDispatcher {
	if queueSize <= 0 {
		queueSize = defaultBulkQueueSize
	}
	return &BulkDispatcher{
		processor: processor,
		metrics:   metrics,
		logger:    logger,
		queue:     make(chan bulkJob, queueSize),
		done:      make(chan struct{}),
	}
}

// Schedule queues submission and returns its job id without waiting for processing.
func (d *BulkDispatcher) Schedule(submission domain.BulkSubmission) (string, error) {
	id := strings.TrimSpace(submission.SubmissionID)
	if id == "" {
		id = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return "", ErrStopped
	}

	select {
	case d.queue <- bulkJob{id: id, submission: submission}:
		d.debug("submission queued", "job", id, "comments", len(submission.Comments))
		return id, nil
	default:
		return "", ErrBusy
	}
}

// Start launches the background worker. Items run on a context that keeps
// ctx's values but not its cancellation; Stop decides when work is abandoned.
func (d *BulkDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	go d.loop(runCtx)
}

// Stop refuses new submissions and waits for queued ones to drain. When ctx
// expires first, in-flight work is cancelled and ctx's error is returned.
func (d *BulkDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}

func (d *BulkDispatcher) loop(ctx context.Context) {
	defer close(d.done)

	for job := range d.queue {
		if ctx.Err() != nil {
			d.warn("dropping submission after shutdown", "job", job.id)
			continue
		}
		d.run(ctx, job)
	}
}

func (d *BulkDispatcher) run(ctx context.Context, job bulkJob) {
	items, skipped := expand(job.submission)
	for i := 0; i < skipped; i++ {
		d.count(bulkSkipped)
	}

	failed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			d.warn("submission interrupted", "job", job.id, "error", ctx.Err())
			return
		}
		if err := d.processor.Process(ctx, item); err != nil {
			failed++
			d.count(bulkFailed)
			d.warn("bulk comment failed", "job", job.id, "document", item.Document, "section", item.Section, "error", err)
			continue
		}
		d.count(bulkProcessed)
	}

	if d.logger != nil {
		d.logger.Info("submission processed",
			"job", job.id,
			"document", job.submission.DocumentID,
			"comments", len(job.submission.Comments),
			"processed", len(items)-failed,
			"failed", failed,
			"skipped", skipped,
		)
	}
}

// expand turns a submission into pipeline items in comment order. Blank
// comments are skipped and counted. The comment text is kept verbatim; a
// markup-free rendering is attached only when the comment is rich text.
func expand(submission domain.BulkSubmission) ([]domain.FeedbackItem, int) {
	items := make([]domain.FeedbackItem, 0, len(submission.Comments))
	skipped := 0

	for _, comment := range submission.Comments {
		if strings.TrimSpace(comment.Text) == "" {
			skipped++
			continue
		}

		section := ""
		if comment.ClauseTitle != nil {
			section = strings.TrimSpace(*comment.ClauseTitle)
		}

		item := domain.NewFeedbackItem(documentName(submission, comment), section, comment.Text)
		if parser.HasMarkup(comment.Text) {
			item.Normalized = parser.PlainText(comment.Text)
		}
		items = append(items, item)
	}

	return items, skipped
}

func documentName(submission domain.BulkSubmission, comment domain.BulkComment) string {
	for _, name := range []string{comment.DocumentName, submission.DocumentTitle, submission.DocumentID} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

func (d *BulkDispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.BulkComment(outcome)
	}
}

func (d *BulkDispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *BulkDispatcher) debug(msg string, args ...interface{}) {
	if d.logger == nil {
		return
	}
	d.logger.Debug(msg, args...)
}
