package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/services"
)

type GoodsHandler struct {
	log   *logger.Logger
	goods services.GoodsService
}

func NewGoodsHandler(log *logger.Logger, goods services.GoodsService) *GoodsHandler {
	return &GoodsHandler{
		log:   log.With("handler", "GoodsHandler"),
		goods: goods,
	}
}

func goodsID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, http.StatusBadRequest, "invalid_goods_id", err)
		return 0, false
	}
	return id, true
}

// GET /api/goods
func (h *GoodsHandler) List(c *gin.Context) {
	filter := repos.GoodsListFilter{
		Search:  c.Query("search"),
		OrderBy: c.Query("order_by"),
	}
	if raw := c.Query("review_status"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.ReviewStatus = &v
		}
	}
	if raw := c.Query("process_status"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.ProcessStatus = &v
		}
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	items, total, err := h.goods.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"items": items, "total": total, "page": page, "page_size": pageSize})
}

// GET /api/goods/:id
func (h *GoodsHandler) Detail(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	goods, err := h.goods.Detail(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// GET /api/goods/statistics
func (h *GoodsHandler) Statistics(c *gin.Context) {
	counts, err := h.goods.Statistics(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"statistics": counts})
}

// GET /api/goods/first-pending-upload
func (h *GoodsHandler) FirstPendingUpload(c *gin.Context) {
	goods, rank, err := h.goods.FirstPendingUpload(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods, "rank": rank})
}

// POST /api/goods/:id/approve
func (h *GoodsHandler) Approve(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	result, err := h.goods.Approve(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// POST /api/goods/:id/discard
func (h *GoodsHandler) Discard(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	goods, err := h.goods.Discard(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// POST /api/goods/:id/save
func (h *GoodsHandler) Save(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	var body services.SaveInput
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	goods, err := h.goods.Save(c.Request.Context(), id, body)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// POST /api/goods/batch-save
func (h *GoodsHandler) BatchReSave(c *gin.Context) {
	var body struct {
		GoodsIDs []int64 `json:"goods_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	result, err := h.goods.BatchReSave(c.Request.Context(), body.GoodsIDs)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// POST /api/goods/:id/swap-image
func (h *GoodsHandler) SwapImage(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	var body struct {
		SourceIndex *int `json:"source_index"`
		TargetIndex *int `json:"target_index"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SourceIndex == nil || body.TargetIndex == nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	goods, err := h.goods.SwapImage(c.Request.Context(), id, *body.SourceIndex, *body.TargetIndex)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// POST /api/goods/:id/remove-image
func (h *GoodsHandler) RemoveImage(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	var body struct {
		ImageIndex *int `json:"image_index"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ImageIndex == nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	goods, err := h.goods.RemoveImage(c.Request.Context(), id, *body.ImageIndex)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// POST /api/goods/:id/replace-main-image
func (h *GoodsHandler) ReplaceMainImage(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	var body struct {
		SourceIndex *int `json:"source_index"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SourceIndex == nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	goods, err := h.goods.ReplaceMainImage(c.Request.Context(), id, *body.SourceIndex)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"goods": goods})
}

// POST /api/goods/:id/re-save
func (h *GoodsHandler) ReSave(c *gin.Context) {
	id, ok := goodsID(c)
	if !ok {
		return
	}
	if err := h.goods.ReSave(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": id, "saved": true})
}
