package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/baodantech/design-review-backend/internal/apperr"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/types"
)

type DesignReviewRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.DesignReviewRecord) ([]*types.DesignReviewRecord, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DesignReviewRecord, error)
	GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.DesignReviewRecord, error)
	ListByStatus(ctx context.Context, tx *gorm.DB, statuses []string, page, pageSize int) ([]*types.DesignReviewRecord, int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsWhereStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, allowedStatuses []string, updates map[string]interface{}) error
}

type designReviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDesignReviewRepo(db *gorm.DB, baseLog *logger.Logger) DesignReviewRepo {
	return &designReviewRepo{db: db, log: baseLog.With("repo", "DesignReviewRepo")}
}

func (r *designReviewRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.DesignReviewRecord) ([]*types.DesignReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*types.DesignReviewRecord{}, nil
	}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *designReviewRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.DesignReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rec types.DesignReviewRecord
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *designReviewRepo) GetBySessionID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.DesignReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if sessionID == "" {
		return nil, nil
	}
	var rec types.DesignReviewRecord
	err := transaction.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *designReviewRepo) ListByStatus(ctx context.Context, tx *gorm.DB, statuses []string, page, pageSize int) ([]*types.DesignReviewRecord, int64, error) {
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
	q := transaction.WithContext(ctx).Model(&types.DesignReviewRecord{})
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.DesignReviewRecord
	if err := q.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *designReviewRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.DesignReviewRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsWhereStatus is the system's sole concurrency primitive: a
// compare-and-swap on status. Zero affected rows means the precondition
// failed and surfaces as ErrConflict; the row is left untouched.
func (r *designReviewRepo) UpdateFieldsWhereStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, allowedStatuses []string, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.DesignReviewRecord{}).
		Where("id = ? AND status IN ?", id, allowedStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConflict
	}
	return nil
}
