package httpapi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"FeedbackAnalyzer/internal/domain"
)

const (
	msgProcessed  = "Feedback processed and stored successfully."
	msgFailed     = "Failed to process and store feedback."
	msgAccepted   = "Submission accepted for processing."
	msgBusy       = "Submission queue is full, retry later."
	msgNotFound   = "Feedback not found"
	msgNeedsDoc   = "Document parameter is required"
	msgBadRequest = "Invalid request body"
)

// feedbackRequest is the single-item body. Chapter is accepted as an alias
// of Document for older clients.
type feedbackRequest struct {
	Document string `json:"document"`
	Chapter  string `json:"chapter"`
	Section  string `json:"section"`
	Feedback string `json:"feedback"`
}

func (r feedbackRequest) item() (domain.FeedbackItem, bool) {
	document := strings.TrimSpace(r.Document)
	if document == "" {
		document = strings.TrimSpace(r.Chapter)
	}
	if document == "" || strings.TrimSpace(r.Feedback) == "" {
		return domain.FeedbackItem{}, false
	}
	return domain.NewFeedbackItem(document, strings.TrimSpace(r.Section), r.Feedback), true
}

type commentRequest struct {
	Text         string  `json:"text"`
	ClauseTitle  *string `json:"clauseTitle"`
	DocumentName string  `json:"documentName"`
}

type submissionRequest struct {
	DocumentID          string           `json:"documentId" binding:"required"`
	DocumentTitle       string           `json:"documentTitle"`
	SubmissionID        string           `json:"submissionId"`
	SubmissionTimestamp json.RawMessage  `json:"submissionTimestamp"`
	TotalComments       int              `json:"totalComments"`
	Comments            []commentRequest `json:"comments"`
}

func (r submissionRequest) submission() domain.BulkSubmission {
	comments := make([]domain.BulkComment, 0, len(r.Comments))
	for _, c := range r.Comments {
		comments = append(comments, domain.BulkComment{
			Text:         c.Text,
			ClauseTitle:  c.ClauseTitle,
			DocumentName: c.DocumentName,
		})
	}
	return domain.BulkSubmission{
		DocumentID:          r.DocumentID,
		DocumentTitle:       r.DocumentTitle,
		SubmissionID:        r.SubmissionID,
		SubmissionTimestamp: parseTimestamp(r.SubmissionTimestamp),
		TotalComments:       r.TotalComments,
		Comments:            comments,
	}
}

// timestampLayouts are tried in order for string timestamps; zone-less
// values are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts an RFC 3339 or ISO-like string, or epoch seconds or
// milliseconds. The core never reads the value, so anything else yields the
// zero time instead of failing the submission.
func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type filterQuery struct {
	Document  string `form:"document"`
	Section   string `form:"section"`
	Sentiment string `form:"sentiment"`
}

func (q filterQuery) filter() (domain.FeedbackFilter, bool) {
	sentiment := domain.Sentiment(strings.ToLower(strings.TrimSpace(q.Sentiment)))
	if sentiment != "" && !sentiment.Valid() {
		return domain.FeedbackFilter{}, false
	}
	return domain.FeedbackFilter{
		Document:  strings.TrimSpace(q.Document),
		Section:   strings.TrimSpace(q.Section),
		Sentiment: sentiment,
	}, true
}

type listQuery struct {
	filterQuery
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type keywordsQuery struct {
	filterQuery
	Limit int `form:"limit"`
}

type feedbackResponse struct {
	ID                 int64     `json:"id"`
	Document           string    `json:"document"`
	Section            string    `json:"section"`
	Feedback           string    `json:"feedback"`
	TranslatedFeedback *string   `json:"translated_feedback"`
	Summary            string    `json:"summary"`
	Sentiment          string    `json:"sentiment"`
	Keywords           []string  `json:"keywords"`
	CreatedAt          time.Time `json:"created_at"`
}

func toFeedbackResponse(f domain.StoredFeedback) feedbackResponse {
	keywords := f.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return feedbackResponse{
		ID:                 f.ID,
		Document:           f.Document,
		Section:            f.Section,
		Feedback:           f.Feedback,
		TranslatedFeedback: f.TranslatedFeedback,
		Summary:            f.Summary,
		Sentiment:          string(f.Sentiment),
		Keywords:           keywords,
		CreatedAt:          f.CreatedAt,
	}
}

type pageResponse struct {
	Data       []feedbackResponse `json:"data"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

type documentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type sectionResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document"`
}

type keywordResponse struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type analyticsResponse struct {
	Total            int            `json:"total"`
	Positive         int            `json:"positive"`
	Negative         int            `json:"negative"`
	Neutral          int            `json:"neutral"`
	OverallSentiment string         `json:"overallSentiment"`
	Keywords         map[string]int `json:"keywords"`
}

type statsResponse struct {
	TotalFeedback           int       `json:"total_feedback"`
	TotalDocuments          int       `json:"total_documents"`
	TotalSections           int       `json:"total_sections"`
	TranslatedFeedbackCount int       `json:"translated_feedback_count"`
	AvgKeywordsPerFeedback  float64   `json:"avg_keywords_per_feedback"`
	RecentFeedback7Days     int       `json:"recent_feedback_7_days"`
	LastUpdated             time.Time `json:"last_updated"`
}
