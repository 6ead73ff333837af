package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

// GoodsListFilter narrows the paginated listing query. Nil status
// pointers mean "no filter".
type GoodsListFilter struct {
	Search        string
	ReviewStatus  *int
	ProcessStatus *int
	OrderBy       string
}

// GoodsCounts are the dashboard statistics buckets.
type GoodsCounts struct {
	Preprocessing int64 `json:"preprocessing"`
	PendingReview int64 `json:"pending_review"`
	PendingUpload int64 `json:"pending_upload"`
	Discarded     int64 `json:"discarded"`
}

type GoodsRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Goods, error)
	List(ctx context.Context, tx *gorm.DB, filter GoodsListFilter, page, pageSize int) ([]*types.Goods, int64, error)
	Counts(ctx context.Context, tx *gorm.DB) (GoodsCounts, error)
	FirstPendingUpload(ctx context.Context, tx *gorm.DB) (*types.Goods, int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error
	UpdateFieldsWhereReviewStatus(ctx context.Context, tx *gorm.DB, id int64, allowed []int, updates map[string]interface{}) error
}

type goodsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoodsRepo(db *gorm.DB, baseLog *logger.Logger) GoodsRepo {
	return &goodsRepo{db: db, log: baseLog.With("repo", "GoodsRepo")}
}

// visible excludes published listings and those flagged as suspected or
// confirmed infringing; they leave the review surface entirely.
func visible(q *gorm.DB) *gorm.DB {
	return q.
		Where("is_publish = 0").
		Where("infringement_status IS NULL OR infringement_status NOT IN (2, 3)")
}

func (r *goodsRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*types.Goods, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var g types.Goods
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == 0 {
		return nil, nil
	}
	return &g, nil
}

func (r *goodsRepo) List(ctx context.Context, tx *gorm.DB, filter GoodsListFilter, page, pageSize int) ([]*types.Goods, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 20
	}
	q := visible(transaction.WithContext(ctx).Model(&types.Goods{}))
	if filter.Search != "" {
		q = q.Where("product_name LIKE ?", "%"+filter.Search+"%")
	}
	if filter.ReviewStatus != nil {
		q = q.Where("review_status = ?", *filter.ReviewStatus)
	}
	if filter.ProcessStatus != nil {
		q = q.Where("process_status = ?", *filter.ProcessStatus)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := "created_at DESC"
	switch filter.OrderBy {
	case "id_asc":
		order = "id ASC"
	case "api_id_asc":
		order = "api_id ASC"
	}
	var out []*types.Goods
	if err := q.
		Order(order).
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *goodsRepo) Counts(ctx context.Context, tx *gorm.DB) (GoodsCounts, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var counts GoodsCounts
	base := func() *gorm.DB {
		return transaction.WithContext(ctx).Model(&types.Goods{}).Where("is_publish = 0")
	}
	if err := base().Where("process_status IN (0, 1)").Count(&counts.Preprocessing).Error; err != nil {
		return counts, err
	}
	if err := base().Where("process_status = ? AND review_status = ?", types.ProcessDone, types.ReviewPending).Count(&counts.PendingReview).Error; err != nil {
		return counts, err
	}
	if err := visible(base()).Where("process_status = ? AND review_status = ?", types.ProcessDone, types.ReviewApproved).Count(&counts.PendingUpload).Error; err != nil {
		return counts, err
	}
	if err := base().Where("process_status = ? AND review_status = ?", types.ProcessDone, types.ReviewDiscarded).Count(&counts.Discarded).Error; err != nil {
		return counts, err
	}
	return counts, nil
}

// FirstPendingUpload returns the newest approved, unpublished listing and
// its 1-based rank within that set.
func (r *goodsRepo) FirstPendingUpload(ctx context.Context, tx *gorm.DB) (*types.Goods, int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	pending := func() *gorm.DB {
		return visible(transaction.WithContext(ctx).Model(&types.Goods{})).
			Where("process_status = ? AND review_status = ?", types.ProcessDone, types.ReviewApproved)
	}
	var g types.Goods
	err := pending().
		Order("created_at DESC").
		Limit(1).
		Find(&g).Error
	if err != nil {
		return nil, 0, err
	}
	if g.ID == 0 {
		return nil, 0, nil
	}
	var newer int64
	if err := pending().Where("created_at > ?", g.CreatedAt).Count(&newer).Error; err != nil {
		return &g, 1, nil
	}
	return &g, newer + 1, nil
}

func (r *goodsRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Goods{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsWhereReviewStatus guards approval-path writes the same way
// review record transitions are guarded: zero rows affected means the
// precondition failed.
func (r *goodsRepo) UpdateFieldsWhereReviewStatus(ctx context.Context, tx *gorm.DB, id int64, allowed []int, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Goods{}).
		Where("id = ? AND review_status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConflict
	}
	return nil
}
