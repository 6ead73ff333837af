package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/clients/catalog"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/sku"
	"github.com/baodantech/design-review-backend/internal/types"
	"github.com/baodantech/design-review-backend/internal/utils"
)

// ApproveResult reports what the approve operation did: either the listing
// was discarded for having too few images, or its spec slot was replaced.
type ApproveResult struct {
	Goods            *types.Goods `json:"goods"`
	Discarded        bool         `json:"discarded"`
	CategoryKey      string       `json:"category_key"`
	CategoryFallback bool         `json:"category_fallback"`
	DisplacedURL     string       `json:"displaced_url,omitempty"`
}

// SaveInput carries the editable listing fields. Nil means "leave the
// field unchanged"; ImageList wholesale-replaces the carousel.
type SaveInput struct {
	Title     *string           `json:"title"`
	MainImage *string           `json:"main_image"`
	ImageList *[]string         `json:"image_list"`
	SKUList   *[]map[string]any `json:"sku_list"`
}

// BatchSaveItem reports one listing's outcome in a batch re-save.
type BatchSaveItem struct {
	ID    int64  `json:"id"`
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}

type BatchSaveResult struct {
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	Items        []BatchSaveItem `json:"items"`
}

// GoodsService is the listing-level review surface: approval, discard,
// carousel mutations and the listing/statistics queries backing the review
// UI. Catalog save and infringement submission are best-effort side
// effects; the local mutation never depends on them.
type GoodsService interface {
	List(ctx context.Context, filter repos.GoodsListFilter, page, pageSize int) ([]*types.Goods, int64, error)
	Detail(ctx context.Context, id int64) (*types.Goods, error)
	Statistics(ctx context.Context) (repos.GoodsCounts, error)
	FirstPendingUpload(ctx context.Context) (*types.Goods, int64, error)

	Approve(ctx context.Context, id int64) (*ApproveResult, error)
	Discard(ctx context.Context, id int64) (*types.Goods, error)
	Save(ctx context.Context, id int64, in SaveInput) (*types.Goods, error)
	SwapImage(ctx context.Context, id int64, sourceIndex, targetIndex int) (*types.Goods, error)
	RemoveImage(ctx context.Context, id int64, imageIndex int) (*types.Goods, error)
	ReplaceMainImage(ctx context.Context, id int64, sourceIndex int) (*types.Goods, error)
	ReSave(ctx context.Context, id int64) error
	BatchReSave(ctx context.Context, ids []int64) (*BatchSaveResult, error)
}

type goodsService struct {
	log         *logger.Logger
	repo        repos.GoodsRepo
	categories  CategoryService
	links       ImageLinkService
	catalog     catalog.Client
	notifier    Notifier
	minCarousel int
}

func NewGoodsService(
	log *logger.Logger,
	repo repos.GoodsRepo,
	categories CategoryService,
	links ImageLinkService,
	catalogClient catalog.Client,
	notifier Notifier,
) GoodsService {
	return &goodsService{
		log:         log.With("service", "GoodsService"),
		repo:        repo,
		categories:  categories,
		links:       links,
		catalog:     catalogClient,
		notifier:    notifier,
		minCarousel: utils.GetEnvAsInt("APPROVE_MIN_CAROUSEL", 4, log),
	}
}

func (s *goodsService) List(ctx context.Context, filter repos.GoodsListFilter, page, pageSize int) ([]*types.Goods, int64, error) {
	return s.repo.List(ctx, nil, filter, page, pageSize)
}

func (s *goodsService) Detail(ctx context.Context, id int64) (*types.Goods, error) {
	return s.mustGet(ctx, id)
}

func (s *goodsService) Statistics(ctx context.Context) (repos.GoodsCounts, error) {
	return s.repo.Counts(ctx, nil)
}

func (s *goodsService) FirstPendingUpload(ctx context.Context) (*types.Goods, int64, error) {
	return s.repo.FirstPendingUpload(ctx, nil)
}

// Approve moves a pending listing to approved. A carousel shorter than the
// minimum is discarded outright with a visible title marker and no side
// effects; otherwise the category's spec slot is replaced, the displaced
// URL is remembered per slot, SKU image references follow the substitution
// and the catalog save plus infringement check are dispatched best-effort.
func (s *goodsService) Approve(ctx context.Context, id int64) (*ApproveResult, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	carousel := goods.Carousel()

	if len(carousel) < s.minCarousel {
		title := goods.ProductName
		if !sku.HasDiscardMarker(title) {
			title = types.DiscardedTitleMarker + title
		}
		err = s.repo.UpdateFieldsWhereReviewStatus(ctx, nil, id, []int{types.ReviewPending}, map[string]interface{}{
			"product_name":  title,
			"review_status": types.ReviewDiscarded,
		})
		if err != nil {
			return nil, err
		}
		s.log.Info("Listing discarded on approve, carousel too short", "goods_id", id, "images", len(carousel))
		s.notifier.Notify(ctx, "goods.discarded", map[string]any{"id": id, "reason": "carousel_too_short", "images": len(carousel)})
		refreshed, err := s.mustGet(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ApproveResult{Goods: refreshed, Discarded: true}, nil
	}

	resolved, err := s.categories.Resolve(ctx, goods.CategoryLabel)
	if err != nil {
		return nil, err
	}
	specIdx := resolved.SpecImageIndex
	if specIdx < 0 || specIdx >= len(carousel) {
		return nil, fmt.Errorf("spec image index %d out of range for %d images: %w", specIdx, len(carousel), apperr.ErrInvalidArgument)
	}

	displacedURL := carousel[specIdx]
	carousel[specIdx] = resolved.SpecImageURL
	displaced := goods.Displaced()
	if displaced == nil {
		displaced = make(map[string]string)
	}
	if _, seen := displaced[strconv.Itoa(specIdx)]; !seen {
		displaced[strconv.Itoa(specIdx)] = displacedURL
	}

	skus := sku.RepointImages(goods.SKUs(), displacedURL, resolved.SpecImageURL)
	skus = sku.EnsureDimensions(skus)

	err = s.repo.UpdateFieldsWhereReviewStatus(ctx, nil, id, []int{types.ReviewPending}, map[string]interface{}{
		"carousel_pic_urls": types.EncodeStringSlice(carousel),
		"sku_list":          types.EncodeSKUs(skus),
		"displaced_images":  types.EncodeStringMap(displaced),
		"review_status":     types.ReviewApproved,
	})
	if err != nil {
		return nil, err
	}
	if err := s.links.SyncLinks(ctx, id, carousel); err != nil {
		return nil, err
	}

	s.dispatchSave(ctx, id)
	s.dispatchInfringement(ctx, goods)
	s.notifier.Notify(ctx, "goods.approved", map[string]any{"id": id, "category": resolved.Key, "fallback": resolved.Fallback})
	if resolved.Fallback {
		s.log.Warn("Approved with fallback category, classification unverified", "goods_id", id, "raw_label", goods.CategoryLabel)
	}

	refreshed, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ApproveResult{
		Goods:            refreshed,
		CategoryKey:      resolved.Key,
		CategoryFallback: resolved.Fallback,
		DisplacedURL:     displacedURL,
	}, nil
}

// Discard is idempotent: a listing already discarded is returned as-is.
func (s *goodsService) Discard(ctx context.Context, id int64) (*types.Goods, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if goods.ReviewStatus == types.ReviewDiscarded {
		return goods, nil
	}
	title := goods.ProductName
	if !sku.HasDiscardMarker(title) {
		title = types.DiscardedTitleMarker + title
	}
	err = s.repo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"product_name":  title,
		"review_status": types.ReviewDiscarded,
	})
	if err != nil {
		return nil, err
	}
	s.dispatchSave(ctx, id)
	s.notifier.Notify(ctx, "goods.discarded", map[string]any{"id": id, "reason": "manual"})
	return s.mustGet(ctx, id)
}

// promoteMain moves mainURL to slot 0, inserting it when the carousel
// does not contain it yet.
func promoteMain(carousel []string, mainURL string) []string {
	if len(carousel) > 0 && carousel[0] == mainURL {
		return carousel
	}
	out := make([]string, 0, len(carousel)+1)
	out = append(out, mainURL)
	for _, u := range carousel {
		if u != mainURL {
			out = append(out, u)
		}
	}
	return out
}

// Save applies operator edits to a listing: title, a wholesale carousel
// replacement, a main-image promotion or a SKU list replacement. The
// carousel is the only way to add images, so an explicit empty list is
// rejected. Edits persist locally first; the catalog save is dispatched
// best-effort like every other mutation.
func (s *goodsService) Save(ctx context.Context, id int64, in SaveInput) (*types.Goods, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	carousel := goods.Carousel()
	carouselChanged := false
	if in.ImageList != nil {
		next := append([]string(nil), (*in.ImageList)...)
		if len(next) == 0 {
			return nil, fmt.Errorf("image_list cannot be empty: %w", apperr.ErrInvalidArgument)
		}
		if in.MainImage != nil && *in.MainImage != "" {
			next = promoteMain(next, *in.MainImage)
		}
		carousel = next
		carouselChanged = true
	} else if in.MainImage != nil && *in.MainImage != "" && len(carousel) > 0 {
		carousel = promoteMain(carousel, *in.MainImage)
		carouselChanged = true
	}
	if carouselChanged {
		updates["carousel_pic_urls"] = types.EncodeStringSlice(carousel)
	}
	if in.Title != nil {
		updates["product_name"] = *in.Title
	}
	if in.SKUList != nil {
		updates["sku_list"] = types.EncodeSKUs(sku.EnsureDimensions(*in.SKUList))
	}

	if len(updates) > 0 {
		if err := s.repo.UpdateFields(ctx, nil, id, updates); err != nil {
			return nil, err
		}
	}
	if carouselChanged {
		if err := s.links.SyncLinks(ctx, id, carousel); err != nil {
			return nil, err
		}
	}
	s.dispatchSave(ctx, id)
	return s.mustGet(ctx, id)
}

// SwapImage exchanges two carousel positions. When slot 0 is involved the
// main image changed, so every SKU image follows the new main.
func (s *goodsService) SwapImage(ctx context.Context, id int64, sourceIndex, targetIndex int) (*types.Goods, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	carousel := goods.Carousel()
	if len(carousel) == 0 {
		return nil, fmt.Errorf("carousel is empty: %w", apperr.ErrInvalidArgument)
	}
	if sourceIndex < 0 || sourceIndex >= len(carousel) || targetIndex < 0 || targetIndex >= len(carousel) {
		return nil, fmt.Errorf("image index out of range: %w", apperr.ErrInvalidArgument)
	}
	carousel[sourceIndex], carousel[targetIndex] = carousel[targetIndex], carousel[sourceIndex]

	updates := map[string]interface{}{
		"carousel_pic_urls": types.EncodeStringSlice(carousel),
	}
	if sourceIndex == 0 || targetIndex == 0 {
		skus := sku.RepointAll(goods.SKUs(), carousel[0])
		updates["sku_list"] = types.EncodeSKUs(sku.EnsureDimensions(skus))
	}
	if err := s.repo.UpdateFields(ctx, nil, id, updates); err != nil {
		return nil, err
	}
	if err := s.links.SyncLinks(ctx, id, carousel); err != nil {
		return nil, err
	}
	s.dispatchSave(ctx, id)
	return s.mustGet(ctx, id)
}

// RemoveImage drops one carousel position, refusing to drop the last
// image. SKUs whose image pointed at the removed URL, or at a URL no
// longer present in the carousel, move to the new main image. Removing
// slot 0 repoints every SKU because the main image itself changed.
func (s *goodsService) RemoveImage(ctx context.Context, id int64, imageIndex int) (*types.Goods, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	carousel := goods.Carousel()
	if len(carousel) == 0 {
		return nil, fmt.Errorf("carousel is empty: %w", apperr.ErrInvalidArgument)
	}
	if imageIndex < 0 || imageIndex >= len(carousel) {
		return nil, fmt.Errorf("image index out of range: %w", apperr.ErrInvalidArgument)
	}
	if len(carousel) <= 1 {
		return nil, fmt.Errorf("cannot remove the last carousel image: %w", apperr.ErrInvalidArgument)
	}

	removedURL := carousel[imageIndex]
	carousel = append(carousel[:imageIndex], carousel[imageIndex+1:]...)
	mainURL := carousel[0]

	var skus []map[string]any
	if imageIndex == 0 {
		skus = sku.RepointAll(goods.SKUs(), mainURL)
	} else {
		skus = sku.RepointOrphans(goods.SKUs(), removedURL, mainURL, carousel)
	}
	skus = sku.EnsureDimensions(skus)

	err = s.repo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"carousel_pic_urls": types.EncodeStringSlice(carousel),
		"sku_list":          types.EncodeSKUs(skus),
	})
	if err != nil {
		return nil, err
	}
	if err := s.links.SyncLinks(ctx, id, carousel); err != nil {
		return nil, err
	}
	s.dispatchSave(ctx, id)
	return s.mustGet(ctx, id)
}

// ReplaceMainImage promotes the selected carousel position to slot 0 and
// repoints every SKU image to it.
func (s *goodsService) ReplaceMainImage(ctx context.Context, id int64, sourceIndex int) (*types.Goods, error) {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	carousel := goods.Carousel()
	if len(carousel) == 0 {
		return nil, fmt.Errorf("carousel is empty: %w", apperr.ErrInvalidArgument)
	}
	if sourceIndex < 0 || sourceIndex >= len(carousel) {
		return nil, fmt.Errorf("image index out of range: %w", apperr.ErrInvalidArgument)
	}
	newMain := carousel[sourceIndex]
	if sourceIndex != 0 {
		carousel[0], carousel[sourceIndex] = carousel[sourceIndex], carousel[0]
	}
	skus := sku.EnsureDimensions(sku.RepointAll(goods.SKUs(), newMain))

	err = s.repo.UpdateFields(ctx, nil, id, map[string]interface{}{
		"carousel_pic_urls": types.EncodeStringSlice(carousel),
		"sku_list":          types.EncodeSKUs(skus),
	})
	if err != nil {
		return nil, err
	}
	if err := s.links.SyncLinks(ctx, id, carousel); err != nil {
		return nil, err
	}
	s.dispatchSave(ctx, id)
	return s.mustGet(ctx, id)
}

// ReSave pushes the current listing state to the catalog synchronously.
// Unlike the dispatch-and-log saves this one surfaces failure, because
// re-saving is the operator's explicit recovery action.
func (s *goodsService) ReSave(ctx context.Context, id int64) error {
	goods, err := s.mustGet(ctx, id)
	if err != nil {
		return err
	}
	payload, err := s.buildPayload(goods)
	if err != nil {
		return err
	}
	return s.catalog.SaveProduct(ctx, payload)
}

// BatchReSave re-saves each listing, collecting per-listing failures
// instead of aborting the batch.
func (s *goodsService) BatchReSave(ctx context.Context, ids []int64) (*BatchSaveResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("goods_ids is required: %w", apperr.ErrInvalidArgument)
	}
	result := &BatchSaveResult{Items: make([]BatchSaveItem, 0, len(ids))}
	for _, id := range ids {
		if err := s.ReSave(ctx, id); err != nil {
			result.ErrorCount++
			result.Items = append(result.Items, BatchSaveItem{ID: id, Error: err.Error()})
			s.log.Warn("Batch re-save failed for listing", "goods_id", id, "error", err)
			continue
		}
		result.SuccessCount++
		result.Items = append(result.Items, BatchSaveItem{ID: id, Saved: true})
	}
	return result, nil
}

func (s *goodsService) mustGet(ctx context.Context, id int64) (*types.Goods, error) {
	goods, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if goods == nil {
		return nil, fmt.Errorf("goods %d: %w", id, apperr.ErrNotFound)
	}
	return goods, nil
}

func (s *goodsService) buildPayload(goods *types.Goods) (catalog.ProductPayload, error) {
	if goods.APIID == nil {
		return catalog.ProductPayload{}, fmt.Errorf("goods %d has no catalog id: %w", goods.ID, apperr.ErrInvalidArgument)
	}
	return catalog.ProductPayload{
		ID:              *goods.APIID,
		ProductName:     goods.ProductName,
		ExtCode:         goods.ExtCode,
		CarouselPicURLs: goods.Carousel(),
		SKUList:         goods.SKUs(),
	}, nil
}

// dispatchSave reloads the listing and posts it to the catalog, absorbing
// every failure.
func (s *goodsService) dispatchSave(ctx context.Context, id int64) {
	goods, err := s.repo.GetByID(ctx, nil, id)
	if err != nil || goods == nil {
		s.log.Warn("Catalog save skipped, listing not reloadable", "goods_id", id, "error", err)
		return
	}
	payload, err := s.buildPayload(goods)
	if err != nil {
		s.log.Warn("Catalog save skipped", "goods_id", id, "error", err)
		return
	}
	if err := s.catalog.SaveProduct(ctx, payload); err != nil {
		s.log.Warn("Catalog save failed", "goods_id", id, "error", err)
	}
}

func (s *goodsService) dispatchInfringement(ctx context.Context, goods *types.Goods) {
	if goods.APIID == nil {
		return
	}
	if err := s.catalog.SubmitInfringementCheck(ctx, []int64{*goods.APIID}); err != nil {
		s.log.Warn("Infringement check submission failed", "goods_id", goods.ID, "api_id", *goods.APIID, "error", err)
	}
}
