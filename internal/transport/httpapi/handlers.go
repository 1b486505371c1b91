package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"FeedbackAnalyzer/internal/domain"
	"FeedbackAnalyzer/internal/usecase"
)

const (
	defaultPageLimit     = 10
	maxPageLimit         = 100
	defaultKeywordsLimit = 50
	analyticsKeywords    = 20
)

func (h *Handler) createFeedback(ctx *gin.Context) {
	var req feedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": msgBadRequest})
		return
	}
	item, ok := req.item()
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "document and feedback are required"})
		return
	}

	// A client that hangs up mid-generation still gets its feedback stored.
	if err := h.processor.Process(context.WithoutCancel(ctx.Request.Context()), item); err != nil {
		h.logError("feedback request failed", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"detail": msgFailed})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": msgProcessed})
}

func (h *Handler) createSubmission(ctx *gin.Context) {
	var req submissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": msgBadRequest})
		return
	}

	jobID, err := h.bulk.Schedule(req.submission())
	if err != nil {
		if errors.Is(err, usecase.ErrBusy) || errors.Is(err, usecase.ErrStopped) {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"detail": msgBusy})
			return
		}
		h.logError("submission scheduling failed", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to schedule submission."})
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": msgAccepted, "jobId": jobID})
}

func (h *Handler) listFeedback(ctx *gin.Context) {
	var q listQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid query parameters"})
		return
	}
	filter, ok := q.filter()
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid sentiment"})
		return
	}

	page := domain.PageRequest{Page: q.Page, Limit: clamp(q.Limit, defaultPageLimit, maxPageLimit)}
	if page.Page < 1 {
		page.Page = 1
	}

	result, err := h.reader.List(ctx.Request.Context(), filter, page)
	if err != nil {
		h.readFailed(ctx, "Failed to fetch feedback", err)
		return
	}

	data := make([]feedbackResponse, 0, len(result.Data))
	for _, f := range result.Data {
		data = append(data, toFeedbackResponse(f))
	}
	ctx.JSON(http.StatusOK, pageResponse{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) getFeedback(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid feedback id"})
		return
	}

	f, err := h.reader.Get(ctx.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"detail": msgNotFound})
		return
	}
	if err != nil {
		h.readFailed(ctx, "Failed to fetch feedback", err)
		return
	}

	ctx.JSON(http.StatusOK, toFeedbackResponse(f))
}

func (h *Handler) listDocuments(ctx *gin.Context) {
	docs, err := h.reader.Documents(ctx.Request.Context())
	if err != nil {
		h.readFailed(ctx, "Failed to fetch documents", err)
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentResponse{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt})
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *Handler) listSections(ctx *gin.Context) {
	document := strings.TrimSpace(ctx.Query("document"))
	if document == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": msgNeedsDoc})
		return
	}

	sections, err := h.reader.Sections(ctx.Request.Context(), document)
	if err != nil {
		h.readFailed(ctx, "Failed to fetch sections", err)
		return
	}

	out := make([]sectionResponse, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionResponse{ID: s, Name: s, Document: document})
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *Handler) listKeywords(ctx *gin.Context) {
	var q keywordsQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid query parameters"})
		return
	}
	filter, ok := q.filter()
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid sentiment"})
		return
	}

	counts, err := h.reader.KeywordCounts(ctx.Request.Context(), filter, clamp(q.Limit, defaultKeywordsLimit, 0))
	if err != nil {
		h.readFailed(ctx, "Failed to fetch keywords", err)
		return
	}

	out := make([]keywordResponse, 0, len(counts))
	for _, kc := range counts {
		out = append(out, keywordResponse{Keyword: kc.Keyword, Count: kc.Count})
	}
	ctx.JSON(http.StatusOK, out)
}

func (h *Handler) analytics(ctx *gin.Context) {
	var q filterQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid query parameters"})
		return
	}
	filter, ok := q.filter()
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid sentiment"})
		return
	}

	a, err := h.reader.Analytics(ctx.Request.Context(), filter)
	if err != nil {
		h.readFailed(ctx, "Failed to fetch analytics", err)
		return
	}

	keywords := make(map[string]int, len(a.Keywords))
	for i, kc := range a.Keywords {
		if i == analyticsKeywords {
			break
		}
		keywords[kc.Keyword] = kc.Count
	}
	ctx.JSON(http.StatusOK, analyticsResponse{
		Total:            a.Total,
		Positive:         a.Positive,
		Negative:         a.Negative,
		Neutral:          a.Neutral,
		OverallSentiment: a.OverallSentiment,
		Keywords:         keywords,
	})
}

func (h *Handler) stats(ctx *gin.Context) {
	s, err := h.reader.Stats(ctx.Request.Context())
	if err != nil {
		h.readFailed(ctx, "Failed to fetch statistics", err)
		return
	}

	ctx.JSON(http.StatusOK, statsResponse{
		TotalFeedback:           s.TotalFeedback,
		TotalDocuments:          s.TotalDocuments,
		TotalSections:           s.TotalSections,
		TranslatedFeedbackCount: s.TranslatedFeedbackCount,
		AvgKeywordsPerFeedback:  s.AvgKeywordsPerFeedback,
		RecentFeedback7Days:     s.RecentFeedback7Days,
		LastUpdated:             s.LastUpdated,
	})
}

func (h *Handler) healthz(ctx *gin.Context) {
	if h.health != nil {
		if err := h.health.PingContext(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) readFailed(ctx *gin.Context, detail string, err error) {
	h.logError("read request failed", err, "path", ctx.FullPath())
	ctx.JSON(http.StatusInternalServerError, gin.H{"detail": detail})
}

func (h *Handler) logError(msg string, err error, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Error(msg, append(args, "error", err)...)
}

// clamp substitutes def for non-positive values and caps at ceiling when it is positive.
func clamp(v, def, ceiling int) int {
	if v <= 0 {
		v = def
	}
	if ceiling > 0 && v > ceiling {
		v = ceiling
	}
	return v
}
