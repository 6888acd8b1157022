package payments

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

// Repository exposes persistence helpers for payment transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.PaymentTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetByPaymentNumber(ctx context.Context, paymentNumber string) (*models.PaymentTransaction, error)
	ListByViolation(ctx context.Context, violationID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentTransaction, *pagination.Cursor, error)
	// SaveTransition persists a mutated payment only if the row still
	// holds one of fromStatuses. A false return means another writer won.
	SaveTransition(ctx context.Context, payment *models.PaymentTransaction, fromStatuses ...enums.PaymentStatus) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) GetByPaymentNumber(ctx context.Context, paymentNumber string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	err := r.db.WithContext(ctx).First(&payment, "payment_number = ?", paymentNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) ListByViolation(ctx context.Context, violationID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.PaymentTransaction, *pagination.Cursor, error) {
	buffered := pagination.LimitWithBuffer(limit)
	normalized := pagination.NormalizeLimit(limit)

	query := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("violation_id = ?", violationID)
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var payments []models.PaymentTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(buffered).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > normalized {
		next := payments[normalized]
		payments = payments[:normalized]
		return payments, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return payments, nil, nil
}

func (r *repositoryImpl) SaveTransition(ctx context.Context, payment *models.PaymentTransaction, fromStatuses ...enums.PaymentStatus) (bool, error) {
	if len(fromStatuses) == 0 {
		return false, errors.New("at least one expected status is required")
	}

	result := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status IN ?", payment.ID, fromStatuses).
		UpdateColumns(map[string]any{
			"status":                 payment.Status,
			"gateway_transaction_id": payment.GatewayTransactionID,
			"gateway_reference":      payment.GatewayReference,
			"gateway_response":       payment.GatewayResponse,
			"error_code":             payment.ErrorCode,
			"error_message":          payment.ErrorMessage,
			"qr_payload":             payment.QRPayload,
			"refund_amount":          payment.RefundAmount,
			"refund_reason":          payment.RefundReason,
			"refunded_by":            payment.RefundedBy,
			"processed_at":           payment.ProcessedAt,
			"completed_at":           payment.CompletedAt,
			"failed_at":              payment.FailedAt,
			"refunded_at":            payment.RefundedAt,
			"updated_at":             time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
