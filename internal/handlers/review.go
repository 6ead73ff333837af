package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/review"
	"github.com/baodantech/design-review-backend/internal/services"
	"github.com/baodantech/design-review-backend/internal/types"
)

type ReviewHandler struct {
	log       *logger.Logger
	reviews   services.ReviewService
	recommend services.RecommendService
}

func NewReviewHandler(log *logger.Logger, reviews services.ReviewService, recommend services.RecommendService) *ReviewHandler {
	return &ReviewHandler{
		log:       log.With("handler", "ReviewHandler"),
		reviews:   reviews,
		recommend: recommend,
	}
}

func recordID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_record_id", err)
		return uuid.Nil, false
	}
	return id, true
}

// POST /api/review/sessions
func (h *ReviewHandler) RegisterSession(c *gin.Context) {
	var in services.RegisterSessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.RegisterSession(c.Request.Context(), in)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// GET /api/review/records/:id
func (h *ReviewHandler) GetRecord(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	record, err := h.reviews.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// GET /api/review/sessions/:session_id
func (h *ReviewHandler) GetBySession(c *gin.Context) {
	record, err := h.reviews.GetBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// GET /api/review/records?status=a,b&page=1&page_size=20
func (h *ReviewHandler) ListRecords(c *gin.Context) {
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	records, total, err := h.reviews.ListByStatus(c.Request.Context(), statuses, page, pageSize)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"records": records, "total": total, "page": page, "page_size": pageSize})
}

// POST /api/review/records/:id/candidates
func (h *ReviewHandler) MergeCandidates(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		Candidates []types.DesignCandidate `json:"candidates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.MergeCandidates(c.Request.Context(), id, body.Candidates)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// PUT /api/review/records/:id/excluded-references
func (h *ReviewHandler) SetExcludedReferences(c *gin.Context) {
	h.setExcluded(c, h.reviews.SetExcludedReferences)
}

// PUT /api/review/records/:id/excluded-candidates
func (h *ReviewHandler) SetExcludedCandidates(c *gin.Context) {
	h.setExcluded(c, h.reviews.SetExcludedCandidates)
}

func (h *ReviewHandler) setExcluded(c *gin.Context, apply func(context.Context, uuid.UUID, []int) (*types.DesignReviewRecord, error)) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		Indices []int `json:"indices"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := apply(c.Request.Context(), id, body.Indices)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/check-results
func (h *ReviewHandler) RecordCheckResults(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		Results   []review.CheckInput `json:"results"`
		Overrides map[int]string      `json:"uploaded_url_overrides"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.RecordCheckResults(c.Request.Context(), id, body.Results, body.Overrides)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/check-results/reset
func (h *ReviewHandler) ResetChecks(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	record, err := h.reviews.ResetChecks(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/reference-images
func (h *ReviewHandler) AddReferenceImages(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.AddReferenceImages(c.Request.Context(), id, body.URLs)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/design-candidates
func (h *ReviewHandler) AddDesignCandidates(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		Candidates []types.DesignCandidate `json:"candidates"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.AddDesignCandidates(c.Request.Context(), id, body.Candidates)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/recommend
func (h *ReviewHandler) Recommend(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	outcome, err := h.recommend.Recommend(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"outcome": outcome})
}

// POST /api/review/records/:id/status
func (h *ReviewHandler) MarkDetected(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.reviews.MarkDetected(c.Request.Context(), id, body.Status); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "status": body.Status})
}

// POST /api/review/records/:id/approve
func (h *ReviewHandler) Approve(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		SelectedIndex *int `json:"selected_index"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SelectedIndex == nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := h.reviews.Approve(c.Request.Context(), id, *body.SelectedIndex)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"record": record})
}

// POST /api/review/records/:id/fail
func (h *ReviewHandler) Fail(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	if err := h.reviews.Fail(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "status": types.StatusFailed})
}

// POST /api/review/records/:id/switch-tab
func (h *ReviewHandler) SwitchTab(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.reviews.SwitchTab(c.Request.Context(), id, body.SessionID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "session_id": body.SessionID, "status": types.StatusGenerating})
}

// POST /api/review/records/:id/complete
func (h *ReviewHandler) Complete(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	if err := h.reviews.Complete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "status": types.StatusCompleted})
}
