package domain

import "time"

// FeedbackFilter narrows read queries; empty fields are ignored.
type FeedbackFilter struct {
	Document  string
	Section   string
	Sentiment Sentiment
}

// PageRequest is a 1-based page of size Limit.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of rows preceding the page.
func (p PageRequest) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// FeedbackPage is one page of stored feedback plus paging totals.
type FeedbackPage struct {
	Data       []StoredFeedback
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// DocumentSummary lists a document that has at least one record.
type DocumentSummary struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// KeywordCount pairs a keyword with its number of occurrences.
type KeywordCount struct {
	Keyword string
	Count   int
}

// Analytics aggregates sentiment and keyword distribution for a filter.
type Analytics struct {
	Total            int
	Positive         int
	Negative         int
	Neutral          int
	OverallSentiment string
	Keywords         []KeywordCount
}

// Stats summarizes the whole store.
type Stats struct {
	TotalFeedback           int
	TotalDocuments          int
	TotalSections           int
	TranslatedFeedbackCount int
	AvgKeywordsPerFeedback  float64
	RecentFeedback7Days     int
	LastUpdated             time.Time
}

// OverallSentiment labels a distribution Positive or Negative when one side
// holds more than 60% of the records, Mixed otherwise.
func OverallSentiment(positive, negative, neutral int) string {
	total := positive + negative + neutral
	if total == 0 {
		return "Mixed"
	}
	if float64(positive)/float64(total) > 0.6 {
		return "Positive"
	}
	if float64(negative)/float64(total) > 0.6 {
		return "Negative"
	}
	return "Mixed"
}
