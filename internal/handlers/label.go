package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/services"
	"github.com/baodantech/design-review-backend/internal/types"
)

type LabelHandler struct {
	log        *logger.Logger
	labels     services.LabelService
	categories services.CategoryService
	links      services.ImageLinkService
}

func NewLabelHandler(log *logger.Logger, labels services.LabelService, categories services.CategoryService, links services.ImageLinkService) *LabelHandler {
	return &LabelHandler{
		log:        log.With("handler", "LabelHandler"),
		labels:     labels,
		categories: categories,
		links:      links,
	}
}

// POST /api/labels/by-url
func (h *LabelHandler) FetchByURLs(c *gin.Context) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.URLs) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	results, degraded, err := h.labels.FetchLabels(c.Request.Context(), body.URLs)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"labels": results, "degraded": degraded})
}

// POST /api/labels
func (h *LabelHandler) WriteLabel(c *gin.Context) {
	var body struct {
		URL    string          `json:"url"`
		Labels json.RawMessage `json:"labels"`
		Source string          `json:"source"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.URL) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.labels.WriteLabel(c.Request.Context(), body.URL, body.Labels, body.Source); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"url": body.URL, "written": true})
}

// GET /api/images/listings?url=...
func (h *LabelHandler) ListingsForImage(c *gin.Context) {
	url := c.Query("url")
	if strings.TrimSpace(url) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_url", nil)
		return
	}
	links, err := h.links.ListingsForImage(c.Request.Context(), url)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"links": links})
}

// GET /api/category-rules
func (h *LabelHandler) ListCategoryRules(c *gin.Context) {
	rules, err := h.categories.ListRules(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"rules": rules})
}

// POST /api/category-rules
func (h *LabelHandler) CreateCategoryRules(c *gin.Context) {
	var body struct {
		Rules []*types.CategoryRule `json:"rules"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Rules) == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	rules, err := h.categories.CreateRules(c.Request.Context(), body.Rules)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"rules": rules})
}

// POST /api/category-rules/resolve
func (h *LabelHandler) ResolveCategory(c *gin.Context) {
	var body struct {
		Label string `json:"label"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	resolved, err := h.categories.Resolve(c.Request.Context(), body.Label)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"category": resolved})
}
