package domain

import (
	"errors"
	"time"
)

// ErrNotFound reports a lookup that matched no stored record.
var ErrNotFound = errors.New("feedback not found")

// NoSection is stored in place of an absent section title.
const NoSection = "null"

// Sentiment is the fixed classification assigned to every stored record.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three accepted values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	default:
		return false
	}
}

// FeedbackItem is a single comment handed to the enrichment pipeline.
// Feedback is stored exactly as received; Normalized, when set, is the
// rendering sent to the oracle instead (rich-text markup removed).
type FeedbackItem struct {
	Document   string
	Section    string
	Feedback   string
	Normalized string
}

// Text returns the text the oracle should see.
func (i FeedbackItem) Text() string {
	if i.Normalized != "" {
		return i.Normalized
	}
	return i.Feedback
}

// NewFeedbackItem substitutes NoSection for a blank section.
func NewFeedbackItem(document, section, feedback string) FeedbackItem {
	if section == "" {
		section = NoSection
	}
	return FeedbackItem{
		Document: document,
		Section:  section,
		Feedback: feedback,
	}
}

// EnrichedRecord is the append-only row produced once per FeedbackItem.
type EnrichedRecord struct {
	Document           string
	Section            string
	Feedback           string
	TranslatedFeedback *string
	Summary            string
	Sentiment          Sentiment
	Keywords           []string
}

// StoredFeedback is an EnrichedRecord as read back from the store.
type StoredFeedback struct {
	ID int64
	EnrichedRecord
	CreatedAt time.Time
}

// BulkComment is one raw comment inside a BulkSubmission.
type BulkComment struct {
	Text         string
	ClauseTitle  *string
	DocumentName string
}

// BulkSubmission is a document-level batch of comments, discarded after dispatch.
type BulkSubmission struct {
	DocumentID          string
	DocumentTitle       string
	SubmissionID        string
	SubmissionTimestamp time.Time
	TotalComments       int
	Comments            []BulkComment
}
