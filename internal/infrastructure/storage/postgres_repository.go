package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"FeedbackAnalyzer/internal/domain"
	"FeedbackAnalyzer/internal/ports"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = domain.ErrNotFound

const table = "feedback"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	recordColumns = []string{
		"id", "document", "section", "feedback", "translated_feedback",
		"summary", "sentiment", "keywords", "created_at",
	}

	schema = []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id SERIAL PRIMARY KEY,
			document TEXT NOT NULL,
			section TEXT NOT NULL,
			feedback TEXT NOT NULL,
			translated_feedback TEXT,
			summary TEXT,
			sentiment VARCHAR(10) CHECK (sentiment IN ('positive', 'negative', 'neutral')),
			keywords TEXT[],
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_document_section ON feedback(document, section)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_sentiment ON feedback(sentiment)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_keywords ON feedback USING GIN(keywords)`,
	}
)

// PostgresRepository persists enriched feedback into Postgres and serves
// the dashboard read queries.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.FeedbackRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the table and its indexes if they do not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Insert writes one record inside a transaction and returns its id.
func (r *PostgresRepository) Insert(ctx context.Context, record domain.EnrichedRecord) (int64, error) {
	if !record.Sentiment.Valid() {
		return 0, fmt.Errorf("insert feedback: invalid sentiment %q", record.Sentiment)
	}

	keywords := record.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	query, args, err := psql.Insert(table).
		Columns("document", "section", "feedback", "translated_feedback", "summary", "sentiment", "keywords").
		Values(
			record.Document,
			record.Section,
			record.Feedback,
			nullString(record.TranslatedFeedback),
			record.Summary,
			string(record.Sentiment),
			pq.StringArray(keywords),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert feedback: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}

	return id, nil
}

// List returns one page of records, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter domain.FeedbackFilter, page domain.PageRequest) (domain.FeedbackPage, error) {
	total, err := r.count(ctx, filter)
	if err != nil {
		return domain.FeedbackPage{}, err
	}

	query, args, err := where(psql.Select(recordColumns...).From(table), filter).
		OrderBy("created_at DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return domain.FeedbackPage{}, fmt.Errorf("build list: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.FeedbackPage{}, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	data := make([]domain.StoredFeedback, 0, page.Limit)
	for rows.Next() {
		item, err := scanRecord(rows)
		if err != nil {
			return domain.FeedbackPage{}, err
		}
		data = append(data, item)
	}
	if err := rows.Err(); err != nil {
		return domain.FeedbackPage{}, fmt.Errorf("rows iteration: %w", err)
	}

	totalPages := 0
	if page.Limit > 0 {
		totalPages = (total + page.Limit - 1) / page.Limit
	}

	return domain.FeedbackPage{
		Data:       data,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages,
	}, nil
}

// Get returns the record with the given id or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (domain.StoredFeedback, error) {
	query, args, err := psql.Select(recordColumns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.StoredFeedback{}, fmt.Errorf("build get: %w", err)
	}

	item, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredFeedback{}, ErrNotFound
	}
	return item, err
}

// Documents lists every document with feedback, most recently started first.
func (r *PostgresRepository) Documents(ctx context.Context) ([]domain.DocumentSummary, error) {
	query, args, err := psql.Select("document", "MIN(created_at)").
		From(table).
		GroupBy("document").
		OrderBy("MIN(created_at) DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build documents: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentSummary
	for rows.Next() {
		var (
			name      string
			createdAt time.Time
		)
		if err := rows.Scan(&name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, domain.DocumentSummary{ID: name, Name: name, CreatedAt: createdAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return docs, nil
}

// Sections lists the distinct sections recorded for a document.
func (r *PostgresRepository) Sections(ctx context.Context, document string) ([]string, error) {
	query, args, err := psql.Select("section").
		Distinct().
		From(table).
		Where(sq.Eq{"document": document}).
		OrderBy("section").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sections: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	var sections []string
	for rows.Next() {
		var section string
		if err := rows.Scan(&section); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return sections, nil
}

// KeywordCounts returns the most frequent keywords, most frequent first.
func (r *PostgresRepository) KeywordCounts(ctx context.Context, filter domain.FeedbackFilter, limit int) ([]domain.KeywordCount, error) {
	builder := where(psql.Select("kw", "COUNT(*) AS occurrences").From(table+", UNNEST(keywords) AS kw"), filter).
		GroupBy("kw").
		OrderBy("occurrences DESC", "kw")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keywords: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var counts []domain.KeywordCount
	for rows.Next() {
		var kc domain.KeywordCount
		if err := rows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		counts = append(counts, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return counts, nil
}

// Analytics aggregates sentiment counts and the top 20 keywords for a filter.
func (r *PostgresRepository) Analytics(ctx context.Context, filter domain.FeedbackFilter) (domain.Analytics, error) {
	query, args, err := where(psql.Select("sentiment", "COUNT(*)").From(table), filter).
		Where("sentiment IS NOT NULL").
		GroupBy("sentiment").
		ToSql()
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("build analytics: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Analytics{}, fmt.Errorf("query sentiment counts: %w", err)
	}

	var out domain.Analytics
	for rows.Next() {
		var (
			sentiment string
			n         int
		)
		if err := rows.Scan(&sentiment, &n); err != nil {
			_ = rows.Close()
			return domain.Analytics{}, fmt.Errorf("scan sentiment count: %w", err)
		}
		switch domain.Sentiment(sentiment) {
		case domain.SentimentPositive:
			out.Positive = n
		case domain.SentimentNegative:
			out.Negative = n
		case domain.SentimentNeutral:
			out.Neutral = n
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return domain.Analytics{}, fmt.Errorf("rows iteration: %w", err)
	}
	if err := rows.Close(); err != nil {
		return domain.Analytics{}, fmt.Errorf("close rows: %w", err)
	}

	if out.Total, err = r.count(ctx, filter); err != nil {
		return domain.Analytics{}, err
	}
	if out.Keywords, err = r.KeywordCounts(ctx, filter, 20); err != nil {
		return domain.Analytics{}, err
	}
	out.OverallSentiment = domain.OverallSentiment(out.Positive, out.Negative, out.Neutral)

	return out, nil
}

// Stats summarizes the whole table.
func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	query, args, err := psql.Select(
		"COUNT(*)",
		"COUNT(DISTINCT document)",
		"COUNT(DISTINCT section)",
		"COUNT(translated_feedback)",
		"COALESCE(AVG(array_length(keywords, 1)), 0)",
	).From(table).ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build stats: %w", err)
	}

	var stats domain.Stats
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalFeedback,
		&stats.TotalDocuments,
		&stats.TotalSections,
		&stats.TranslatedFeedbackCount,
		&stats.AvgKeywordsPerFeedback,
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}

	query, args, err = psql.Select("COUNT(*)").
		From(table).
		Where("created_at > NOW() - INTERVAL '7 days'").
		ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build recent stats: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.RecentFeedback7Days); err != nil {
		return domain.Stats{}, fmt.Errorf("query recent stats: %w", err)
	}

	stats.LastUpdated = time.Now().UTC()
	return stats, nil
}

func (r *PostgresRepository) count(ctx context.Context, filter domain.FeedbackFilter) (int, error) {
	query, args, err := where(psql.Select("COUNT(*)").From(table), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return total, nil
}

func where(b sq.SelectBuilder, filter domain.FeedbackFilter) sq.SelectBuilder {
	eq := sq.Eq{}
	if filter.Document != "" {
		eq["document"] = filter.Document
	}
	if filter.Section != "" {
		eq["section"] = filter.Section
	}
	if filter.Sentiment != "" {
		eq["sentiment"] = string(filter.Sentiment)
	}
	if len(eq) == 0 {
		return b
	}
	return b.Where(eq)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.StoredFeedback, error) {
	var (
		item       domain.StoredFeedback
		translated sql.NullString
		summary    sql.NullString
		sentiment  sql.NullString
		keywords   pq.StringArray
	)

	err := row.Scan(
		&item.ID,
		&item.Document,
		&item.Section,
		&item.Feedback,
		&translated,
		&summary,
		&sentiment,
		&keywords,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.StoredFeedback{}, err
		}
		return domain.StoredFeedback{}, fmt.Errorf("scan feedback: %w", err)
	}

	if translated.Valid {
		text := translated.String
		item.TranslatedFeedback = &text
	}
	item.Summary = summary.String
	item.Sentiment = domain.Sentiment(sentiment.String)
	if !item.Sentiment.Valid() {
		item.Sentiment = domain.SentimentNeutral
	}
	item.Keywords = []string(keywords)
	if item.Keywords == nil {
		item.Keywords = []string{}
	}

	return item, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
