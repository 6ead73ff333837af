package repos

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

type ImageLabelRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, labels []*types.ImageLabel) error
	GetByHashes(ctx context.Context, tx *gorm.DB, hashes []string) ([]*types.ImageLabel, error)
}

type imageLabelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImageLabelRepo(db *gorm.DB, baseLog *logger.Logger) ImageLabelRepo {
	return &imageLabelRepo{db: db, log: baseLog.With("repo", "ImageLabelRepo")}
}

func (r *imageLabelRepo) Upsert(ctx context.Context, tx *gorm.DB, labels []*types.ImageLabel) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(labels) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "labels", "source", "updated_at"}),
		}).
		Create(&labels).Error
}

func (r *imageLabelRepo) GetByHashes(ctx context.Context, tx *gorm.DB, hashes []string) ([]*types.ImageLabel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ImageLabel
	if len(hashes) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("hash IN ?", hashes).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
