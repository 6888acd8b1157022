package violations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
)

// Repository exposes persistence helpers for violation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.ViolationRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ViolationRecord, error)
	GetByOVRNumber(ctx context.Context, ovrNumber string) (*models.ViolationRecord, error)
	List(ctx context.Context, params ListQuery) ([]models.ViolationRecord, *pagination.Cursor, error)
	// SaveTransition persists a mutated record only if the row still
	// holds fromStatus. A false return means another writer won.
	SaveTransition(ctx context.Context, record *models.ViolationRecord, fromStatus enums.ViolationStatus) (bool, error)
	// MarkOverdue flips pending rows past their deadline, returning how
	// many changed.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	// ListPendingPastDeadline returns pending rows whose deadline has
	// passed, oldest deadline first.
	ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]models.ViolationRecord, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a violations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type ListQuery struct {
	PlateNumber string
	Status      *enums.ViolationStatus
	EnforcerID  *uuid.UUID
	Limit       int
	Cursor      *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, record *models.ViolationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.ViolationRecord, error) {
	var record models.ViolationRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) GetByOVRNumber(ctx context.Context, ovrNumber string) (*models.ViolationRecord, error) {
	var record models.ViolationRecord
	err := r.db.WithContext(ctx).First(&record, "ovr_number = ?", ovrNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListQuery) ([]models.ViolationRecord, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.ViolationRecord{})
	if params.PlateNumber != "" {
		query = query.Where("plate_number = ?", params.PlateNumber)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.EnforcerID != nil {
		query = query.Where("enforcer_id = ?", *params.EnforcerID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var records []models.ViolationRecord
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, nil, err
	}

	if len(records) > normalized {
		next := records[normalized]
		records = records[:normalized]
		return records, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return records, nil, nil
}

func (r *repositoryImpl) SaveTransition(ctx context.Context, record *models.ViolationRecord, fromStatus enums.ViolationStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ViolationRecord{}).
		Where("id = ? AND status = ?", record.ID, fromStatus).
		UpdateColumns(map[string]any{
			"status":            record.Status,
			"is_disputed":       record.IsDisputed,
			"dispute_reason":    record.DisputeReason,
			"dispute_date":      record.DisputeDate,
			"dispute_status":    record.DisputeStatus,
			"payment_method":    record.PaymentMethod,
			"payment_reference": record.PaymentReference,
			"payment_date":      record.PaymentDate,
			"updated_at":        time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ListPendingPastDeadline(ctx context.Context, now time.Time, limit int) ([]models.ViolationRecord, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	var records []models.ViolationRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_deadline < ?", enums.ViolationStatusPending, now).
		Order("payment_deadline ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *repositoryImpl) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ViolationRecord{}).
		Where("status = ? AND payment_deadline < ?", enums.ViolationStatusPending, now).
		UpdateColumns(map[string]any{
			"status":     enums.ViolationStatusOverdue,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
