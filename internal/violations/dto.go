package violations

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// CreateViolationInput is the payload an enforcer submits when issuing
// a citation. Enforcer identity comes from the access token, not the body.
type CreateViolationInput struct {
	PlateNumber  string  `json:"plateNumber" validate:"required,min=5,max=15"`
	VehicleType  string  `json:"vehicleType" validate:"required"`
	VehicleMake  *string `json:"vehicleMake,omitempty" validate:"omitempty,max=60"`
	VehicleModel *string `json:"vehicleModel,omitempty" validate:"omitempty,max=60"`
	VehicleColor *string `json:"vehicleColor,omitempty" validate:"omitempty,max=30"`

	DriverName    *string    `json:"driverName,omitempty" validate:"omitempty,min=2,max=100"`
	DriverLicense *string    `json:"driverLicense,omitempty" validate:"omitempty,min=5,max=20"`
	DriverPhone   *string    `json:"driverPhone,omitempty" validate:"omitempty,e164"`
	OwnerUserID   *uuid.UUID `json:"ownerUserId,omitempty"`

	ViolationType string    `json:"violationType" validate:"required"`
	Description   string    `json:"description" validate:"required,min=10,max=1000"`
	Location      string    `json:"location" validate:"required,min=5,max=200"`
	ViolationDate time.Time `json:"violationDate" validate:"required"`
	ViolationTime string    `json:"violationTime" validate:"required"`

	BaseFine            decimal.Decimal `json:"baseFine" validate:"required"`
	AdditionalPenalties decimal.Decimal `json:"additionalPenalties"`
	DemeritPoints       int             `json:"demeritPoints" validate:"gte=0,lte=100"`

	EnforcerID    uuid.UUID `json:"-"`
	EnforcerName  string    `json:"-"`
	EnforcerBadge string    `json:"-"`
}

// ViolationView is the caller-facing projection of a violation record.
type ViolationView struct {
	ID             uuid.UUID `json:"id"`
	OVRNumber      string    `json:"ovrNumber"`
	CitationNumber string    `json:"citationNumber"`

	PlateNumber  string            `json:"plateNumber"`
	VehicleType  enums.VehicleType `json:"vehicleType"`
	VehicleMake  *string           `json:"vehicleMake,omitempty"`
	VehicleModel *string           `json:"vehicleModel,omitempty"`
	VehicleColor *string           `json:"vehicleColor,omitempty"`
	DriverName   *string           `json:"driverName,omitempty"`

	ViolationType enums.ViolationType `json:"violationType"`
	Description   string              `json:"description"`
	Location      string              `json:"location"`
	ViolationDate time.Time           `json:"violationDate"`
	ViolationTime string              `json:"violationTime"`

	BaseFine            decimal.Decimal `json:"baseFine"`
	AdditionalPenalties decimal.Decimal `json:"additionalPenalties"`
	TotalFine           decimal.Decimal `json:"totalFine"`
	DemeritPoints       int             `json:"demeritPoints"`

	DueDate         time.Time             `json:"dueDate"`
	PaymentDeadline time.Time             `json:"paymentDeadline"`
	Status          enums.ViolationStatus `json:"status"`
	IsOverdue       bool                  `json:"isOverdue"`
	DaysUntilDue    int                   `json:"daysUntilDue"`

	IsDisputed    bool                 `json:"isDisputed"`
	DisputeStatus *enums.DisputeStatus `json:"disputeStatus,omitempty"`
	DisputeDate   *time.Time           `json:"disputeDate,omitempty"`

	PaymentMethod    *enums.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentReference *string              `json:"paymentReference,omitempty"`
	PaymentDate      *time.Time           `json:"paymentDate,omitempty"`

	EnforcerName  string `json:"enforcerName"`
	EnforcerBadge string `json:"enforcerBadge"`

	CreatedAt time.Time `json:"createdAt"`
}

// NewView projects a record for responses, recomputing the overdue
// predicate at read time so stale rows never hide lateness.
func NewView(v *models.ViolationRecord, now time.Time) *ViolationView {
	if v == nil {
		return nil
	}

	status := v.Status
	if v.IsOverdue(now) {
		status = enums.ViolationStatusOverdue
	}

	return &ViolationView{
		ID:             v.ID,
		OVRNumber:      v.OVRNumber,
		CitationNumber: v.CitationNumber,

		PlateNumber:  v.PlateNumber,
		VehicleType:  v.VehicleType,
		VehicleMake:  v.VehicleMake,
		VehicleModel: v.VehicleModel,
		VehicleColor: v.VehicleColor,
		DriverName:   v.DriverName,

		ViolationType: v.ViolationType,
		Description:   v.Description,
		Location:      v.Location,
		ViolationDate: v.ViolationDate,
		ViolationTime: v.ViolationTime,

		BaseFine:            v.BaseFine,
		AdditionalPenalties: v.AdditionalPenalties,
		TotalFine:           v.TotalFine,
		DemeritPoints:       v.DemeritPoints,

		DueDate:         v.DueDate,
		PaymentDeadline: v.PaymentDeadline,
		Status:          status,
		IsOverdue:       v.IsOverdue(now),
		DaysUntilDue:    v.DaysUntilDue(now),

		IsDisputed:    v.IsDisputed,
		DisputeStatus: v.DisputeStatus,
		DisputeDate:   v.DisputeDate,

		PaymentMethod:    v.PaymentMethod,
		PaymentReference: v.PaymentReference,
		PaymentDate:      v.PaymentDate,

		EnforcerName:  v.EnforcerName,
		EnforcerBadge: v.EnforcerBadge,

		CreatedAt: v.CreatedAt,
	}
}
