package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

type GoodsImageLinkRepo interface {
	ReplaceForListing(ctx context.Context, tx *gorm.DB, listingID int64, links []*types.GoodsImageLink) error
	ListByHash(ctx context.Context, tx *gorm.DB, hash string) ([]*types.GoodsImageLink, error)
	ListByListing(ctx context.Context, tx *gorm.DB, listingID int64) ([]*types.GoodsImageLink, error)
}

type goodsImageLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoodsImageLinkRepo(db *gorm.DB, baseLog *logger.Logger) GoodsImageLinkRepo {
	return &goodsImageLinkRepo{db: db, log: baseLog.With("repo", "GoodsImageLinkRepo")}
}

// ReplaceForListing deletes every link for the listing and inserts the
// given set inside one transaction. Full replace, never incremental, so
// missed deletions cannot accumulate.
func (r *goodsImageLinkRepo) ReplaceForListing(ctx context.Context, tx *gorm.DB, listingID int64, links []*types.GoodsImageLink) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.
			Where("listing_id = ?", listingID).
			Delete(&types.GoodsImageLink{}).Error; err != nil {
			return err
		}
		if len(links) == 0 {
			return nil
		}
		return txx.Create(&links).Error
	})
}

func (r *goodsImageLinkRepo) ListByHash(ctx context.Context, tx *gorm.DB, hash string) ([]*types.GoodsImageLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GoodsImageLink
	if hash == "" {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("hash = ?", hash).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goodsImageLinkRepo) ListByListing(ctx context.Context, tx *gorm.DB, listingID int64) ([]*types.GoodsImageLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GoodsImageLink
	if err := transaction.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
