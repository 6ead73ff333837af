package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

type CategoryRuleRepo interface {
	ListOrdered(ctx context.Context, tx *gorm.DB) ([]*types.CategoryRule, error)
	Create(ctx context.Context, tx *gorm.DB, rules []*types.CategoryRule) ([]*types.CategoryRule, error)
}

type categoryRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryRuleRepo(db *gorm.DB, baseLog *logger.Logger) CategoryRuleRepo {
	return &categoryRuleRepo{db: db, log: baseLog.With("repo", "CategoryRuleRepo")}
}

// ListOrdered loads the whole rule sequence by ascending sort_order.
// Resolution is first-match-wins so the order must survive exactly as
// configured.
func (r *categoryRuleRepo) ListOrdered(ctx context.Context, tx *gorm.DB) ([]*types.CategoryRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CategoryRule
	if err := transaction.WithContext(ctx).
		Order("sort_order ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *categoryRuleRepo) Create(ctx context.Context, tx *gorm.DB, rules []*types.CategoryRule) ([]*types.CategoryRule, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rules) == 0 {
		return []*types.CategoryRule{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
