package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"FeedbackAnalyzer/internal/domain"
	"FeedbackAnalyzer/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProcessor struct {
	items   []domain.FeedbackItem
	ctxErrs []error
	err     error
}

func (p *fakeProcessor) Process(ctx context.Context, item domain.FeedbackItem) error {
	p.items = append(p.items, item)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

type fakeScheduler struct {
	submissions []domain.BulkSubmission
	err         error
}

func (s *fakeScheduler) Schedule(sub domain.BulkSubmission) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.submissions = append(s.submissions, sub)
	return "job-1", nil
}

type fakeReader struct {
	page       domain.FeedbackPage
	lastFilter domain.FeedbackFilter
	lastPage   domain.PageRequest
	lastLimit  int
	record     domain.StoredFeedback
	sections   []string
	keywords   []domain.KeywordCount
	analytics  domain.Analytics
	stats      domain.Stats
	err        error
}

func (r *fakeReader) List(_ context.Context, f domain.FeedbackFilter, p domain.PageRequest) (domain.FeedbackPage, error) {
	r.lastFilter, r.lastPage = f, p
	return r.page, r.err
}

func (r *fakeReader) Get(_ context.Context, id int64) (domain.StoredFeedback, error) {
	if r.err != nil {
		return domain.StoredFeedback{}, r.err
	}
	if id != r.record.ID {
		return domain.StoredFeedback{}, domain.ErrNotFound
	}
	return r.record, nil
}

func (r *fakeReader) Documents(context.Context) ([]domain.DocumentSummary, error) {
	return []domain.DocumentSummary{{ID: "Companies Act", Name: "Companies Act"}}, r.err
}

func (r *fakeReader) Sections(_ context.Context, document string) ([]string, error) {
	return r.sections, r.err
}

func (r *fakeReader) KeywordCounts(_ context.Context, f domain.FeedbackFilter, limit int) ([]domain.KeywordCount, error) {
	r.lastFilter, r.lastLimit = f, limit
	return r.keywords, r.err
}

func (r *fakeReader) Analytics(_ context.Context, f domain.FeedbackFilter) (domain.Analytics, error) {
	r.lastFilter = f
	return r.analytics, r.err
}

func (r *fakeReader) Stats(context.Context) (domain.Stats, error) {
	return r.stats, r.err
}

type fakeHealth struct{ err error }

func (h fakeHealth) PingContext(context.Context) error { return h.err }

func newTestRouter(proc *fakeProcessor, sched *fakeScheduler, reader *fakeReader) *gin.Engine {
	return NewRouter(Deps{Processor: proc, Bulk: sched, Reader: reader})
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateFeedback(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	router := newTestRouter(proc, &fakeScheduler{}, &fakeReader{})

	for _, path := range []string{"/", "/feedback"} {
		rec := do(t, router, http.MethodPost, path, `{"document":"Companies Act","section":"","feedback":"Looks good"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("%s: expected 201, got %d: %s", path, rec.Code, rec.Body.String())
		}
		var body map[string]string
		decode(t, rec, &body)
		if body["message"] != msgProcessed {
			t.Fatalf("unexpected body: %v", body)
		}
	}

	if len(proc.items) != 2 {
		t.Fatalf("expected two processed items, got %d", len(proc.items))
	}
	if proc.items[0].Section != domain.NoSection {
		t.Fatalf("blank section must become %q, got %q", domain.NoSection, proc.items[0].Section)
	}
}

func TestCreateFeedbackAcceptsChapter(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	router := newTestRouter(proc, &fakeScheduler{}, &fakeReader{})

	rec := do(t, router, http.MethodPost, "/", `{"chapter":"Chapter 2","section":"2.1","feedback":"ok"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if proc.items[0].Document != "Chapter 2" || proc.items[0].Section != "2.1" {
		t.Fatalf("unexpected item: %+v", proc.items[0])
	}
}

func TestCreateFeedbackValidation(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	router := newTestRouter(proc, &fakeScheduler{}, &fakeReader{})

	for _, body := range []string{`{"document":"d"}`, `{"feedback":"x"}`, `not json`} {
		if rec := do(t, router, http.MethodPost, "/", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if len(proc.items) != 0 {
		t.Fatalf("invalid requests must not reach the pipeline")
	}
}

func TestCreateFeedbackFailure(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeProcessor{err: errors.New("boom")}, &fakeScheduler{}, &fakeReader{})

	rec := do(t, router, http.MethodPost, "/", `{"document":"d","section":"s","feedback":"x"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["detail"] != msgFailed {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestCreateSubmission(t *testing.T) {
	t.Parallel()

	sched := &fakeScheduler{}
	router := newTestRouter(&fakeProcessor{}, sched, &fakeReader{})

	payload := `{
		"documentId": "doc-7",
		"documentTitle": "Draft Rules",
		"submissionId": "sub-9",
		"submissionTimestamp": "2024-09-01T10:00:00Z",
		"totalComments": 2,
		"comments": [
			{"text": "First", "clauseTitle": "Clause 1", "documentName": "Draft Rules", "author": "ignored"},
			{"text": "Second", "documentName": "Draft Rules"}
		]
	}`
	rec := do(t, router, http.MethodPost, "/submissions", payload)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	decode(t, rec, &body)
	if body["message"] != msgAccepted || body["jobId"] != "job-1" {
		t.Fatalf("unexpected body: %v", body)
	}

	sub := sched.submissions[0]
	if sub.DocumentID != "doc-7" || len(sub.Comments) != 2 || sub.TotalComments != 2 {
		t.Fatalf("unexpected submission: %+v", sub)
	}
	if !sub.SubmissionTimestamp.Equal(time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", sub.SubmissionTimestamp)
	}
	if sub.Comments[0].ClauseTitle == nil || *sub.Comments[0].ClauseTitle != "Clause 1" {
		t.Fatalf("clause title not carried over")
	}
	if sub.Comments[1].ClauseTitle != nil {
		t.Fatalf("missing clause title should stay nil")
	}
}

func TestCreateSubmissionBusy(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{err: usecase.ErrBusy}, &fakeReader{})

	rec := do(t, router, http.MethodPost, "/submissions", `{"documentId":"d","comments":[]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCreateSubmissionRequiresDocumentID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, &fakeReader{})

	if rec := do(t, router, http.MethodPost, "/submissions", `{"comments":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListFeedback(t *testing.T) {
	t.Parallel()

	translated := "translated"
	stored := domain.StoredFeedback{ID: 3}
	stored.Document = "d"
	stored.Section = "s"
	stored.Feedback = "f"
	stored.TranslatedFeedback = &translated
	stored.Summary = "sum"
	stored.Sentiment = domain.SentimentNegative

	reader := &fakeReader{page: domain.FeedbackPage{
		Data:       []domain.StoredFeedback{stored},
		Total:      21,
		Page:       3,
		Limit:      10,
		TotalPages: 3,
	}}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	rec := do(t, router, http.MethodGet, "/feedback?document=d&sentiment=NEGATIVE&page=3&limit=500", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if reader.lastFilter.Document != "d" || reader.lastFilter.Sentiment != domain.SentimentNegative {
		t.Fatalf("unexpected filter: %+v", reader.lastFilter)
	}
	if reader.lastPage.Page != 3 || reader.lastPage.Limit != maxPageLimit {
		t.Fatalf("unexpected page request: %+v", reader.lastPage)
	}

	var body pageResponse
	decode(t, rec, &body)
	if body.Total != 21 || body.TotalPages != 3 || len(body.Data) != 1 {
		t.Fatalf("unexpected page: %+v", body)
	}
	got := body.Data[0]
	if got.TranslatedFeedback == nil || *got.TranslatedFeedback != "translated" || got.Keywords == nil {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestListFeedbackDefaults(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	if rec := do(t, router, http.MethodGet, "/feedback", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reader.lastPage.Page != 1 || reader.lastPage.Limit != defaultPageLimit {
		t.Fatalf("unexpected defaults: %+v", reader.lastPage)
	}

	if rec := do(t, router, http.MethodGet, "/feedback?sentiment=angry", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sentiment, got %d", rec.Code)
	}
}

func TestGetFeedback(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{record: domain.StoredFeedback{ID: 5, EnrichedRecord: domain.EnrichedRecord{Document: "d", Keywords: []string{"tax"}}}}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	rec := do(t, router, http.MethodGet, "/feedback/5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body feedbackResponse
	decode(t, rec, &body)
	if body.ID != 5 || body.Document != "d" || len(body.Keywords) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}

	if rec := do(t, router, http.MethodGet, "/feedback/6", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/feedback/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSectionsRequiresDocument(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{sections: []string{"Clause 1", "null"}}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	if rec := do(t, router, http.MethodGet, "/sections", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec := do(t, router, http.MethodGet, "/sections?document=Companies+Act", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body []sectionResponse
	decode(t, rec, &body)
	if len(body) != 2 || body[0].ID != "Clause 1" || body[0].Document != "Companies Act" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{keywords: []domain.KeywordCount{{Keyword: "cost", Count: 4}, {Keyword: "audit", Count: 2}}}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	rec := do(t, router, http.MethodGet, "/keywords?section=Clause+1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reader.lastLimit != defaultKeywordsLimit || reader.lastFilter.Section != "Clause 1" {
		t.Fatalf("unexpected query: limit=%d filter=%+v", reader.lastLimit, reader.lastFilter)
	}
	var body []keywordResponse
	decode(t, rec, &body)
	if len(body) != 2 || body[0].Keyword != "cost" || body[0].Count != 4 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAnalyticsAndStats(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{
		analytics: domain.Analytics{Total: 5, Positive: 4, Neutral: 1, OverallSentiment: "Positive", Keywords: []domain.KeywordCount{{Keyword: "cost", Count: 3}}},
		stats:     domain.Stats{TotalFeedback: 5, AvgKeywordsPerFeedback: 2.5, RecentFeedback7Days: 1},
	}
	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, reader)

	rec := do(t, router, http.MethodGet, "/analytics?document=d", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var a analyticsResponse
	decode(t, rec, &a)
	if a.Total != 5 || a.OverallSentiment != "Positive" || a.Keywords["cost"] != 3 {
		t.Fatalf("unexpected analytics: %+v", a)
	}

	rec = do(t, router, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s statsResponse
	decode(t, rec, &s)
	if s.TotalFeedback != 5 || s.AvgKeywordsPerFeedback != 2.5 || s.RecentFeedback7Days != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestReadFailureReturns500(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&fakeProcessor{}, &fakeScheduler{}, &fakeReader{err: errors.New("db down")})

	for _, path := range []string{"/feedback", "/documents", "/keywords", "/analytics", "/stats"} {
		if rec := do(t, router, http.MethodGet, path, ""); rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ok := NewRouter(Deps{Health: fakeHealth{}})
	if rec := do(t, ok, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := NewRouter(Deps{Health: fakeHealth{err: errors.New("no db")}})
	if rec := do(t, down, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	router := NewRouter(Deps{Reader: &fakeReader{}, RateLimit: 0.001, RateBurst: 1})

	if rec := do(t, router, http.MethodGet, "/stats", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/stats", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health checks must bypass the limiter, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("feedback_processed_total 1\n"))
	})
	router := NewRouter(Deps{Metrics: metrics})

	rec := do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "feedback_processed_total") {
		t.Fatalf("unexpected metrics response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateFeedbackSurvivesClientDisconnect(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	router := newTestRouter(proc, &fakeScheduler{}, &fakeReader{})

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"document":"d","section":"s","feedback":"x"}`)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(proc.ctxErrs) != 1 || proc.ctxErrs[0] != nil {
		t.Fatalf("processing must not inherit request cancellation, got %v", proc.ctxErrs)
	}
}

func TestCreateSubmissionLenientTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Time
	}{
		{`"2024-09-01T10:00:00"`, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)},
		{`"2024-09-01T10:00:00.123456"`, time.Date(2024, 9, 1, 10, 0, 0, 123456000, time.UTC)},
		{`1725184800000`, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)},
		{`1725184800`, time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)},
		{`""`, time.Time{}},
		{`null`, time.Time{}},
		{`"yesterday"`, time.Time{}},
	}

	for _, tc := range cases {
		sched := &fakeScheduler{}
		router := newTestRouter(&fakeProcessor{}, sched, &fakeReader{})

		body := `{"documentId":"doc-1","submissionTimestamp":` + tc.raw + `,"comments":[{"text":"ok"}]}`
		rec := do(t, router, http.MethodPost, "/submissions", body)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("timestamp %s: expected 202, got %d: %s", tc.raw, rec.Code, rec.Body.String())
		}
		if len(sched.submissions) != 1 {
			t.Fatalf("timestamp %s: submission not scheduled", tc.raw)
		}
		if got := sched.submissions[0].SubmissionTimestamp; !got.Equal(tc.want) {
			t.Fatalf("timestamp %s: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}
