package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// ViolationRecord is a traffic citation issued by an enforcer.
type ViolationRecord struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OVRNumber      string    `gorm:"column:ovr_number;not null;uniqueIndex:uniq_violations_ovr_number"`
	CitationNumber string    `gorm:"column:citation_number;not null;uniqueIndex:uniq_violations_citation_number"`

	PlateNumber   string            `gorm:"column:plate_number;not null"`
	VehicleType   enums.VehicleType `gorm:"column:vehicle_type;not null"`
	VehicleMake   *string           `gorm:"column:vehicle_make"`
	VehicleModel  *string           `gorm:"column:vehicle_model"`
	VehicleColor  *string           `gorm:"column:vehicle_color"`
	DriverName    *string           `gorm:"column:driver_name"`
	DriverLicense *string           `gorm:"column:driver_license"`
	DriverPhone   *string           `gorm:"column:driver_phone"`
	OwnerUserID   *uuid.UUID        `gorm:"column:owner_user_id;type:uuid"`

	ViolationType enums.ViolationType `gorm:"column:violation_type;not null"`
	Description   string              `gorm:"column:description;not null"`
	Location      string              `gorm:"column:location;not null"`
	ViolationDate time.Time           `gorm:"column:violation_date;not null"`
	ViolationTime string              `gorm:"column:violation_time;not null"`

	BaseFine            decimal.Decimal `gorm:"column:base_fine;type:numeric(12,2);not null"`
	AdditionalPenalties decimal.Decimal `gorm:"column:additional_penalties;type:numeric(12,2);not null;default:0"`
	TotalFine           decimal.Decimal `gorm:"column:total_fine;type:numeric(12,2);not null"`
	DemeritPoints       int             `gorm:"column:demerit_points;not null;default:0"`

	DueDate         time.Time             `gorm:"column:due_date;not null"`
	PaymentDeadline time.Time             `gorm:"column:payment_deadline;not null"`
	Status          enums.ViolationStatus `gorm:"column:status;not null;default:'pending'"`

	IsDisputed    bool                 `gorm:"column:is_disputed;not null;default:false"`
	DisputeReason *string              `gorm:"column:dispute_reason"`
	DisputeDate   *time.Time           `gorm:"column:dispute_date"`
	DisputeStatus *enums.DisputeStatus `gorm:"column:dispute_status"`

	PaymentMethod    *enums.PaymentMethod `gorm:"column:payment_method"`
	PaymentReference *string              `gorm:"column:payment_reference"`
	PaymentDate      *time.Time           `gorm:"column:payment_date"`

	EnforcerID    uuid.UUID `gorm:"column:enforcer_id;type:uuid;not null"`
	EnforcerName  string    `gorm:"column:enforcer_name;not null"`
	EnforcerBadge string    `gorm:"column:enforcer_badge;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName implements the GORM naming hook.
func (ViolationRecord) TableName() string {
	return "violation_records"
}

// IsOverdue reports whether the violation is unpaid past its deadline.
// The materialized overdue status and the live deadline check must agree,
// so both are consulted.
func (v *ViolationRecord) IsOverdue(now time.Time) bool {
	if v.Status == enums.ViolationStatusOverdue {
		return true
	}
	if v.Status != enums.ViolationStatusPending {
		return false
	}
	return now.After(v.PaymentDeadline)
}

// DaysUntilDue returns days until the payment deadline, rounded up so a
// partial day still counts as one. Negative when already past it.
func (v *ViolationRecord) DaysUntilDue(now time.Time) int {
	return int(math.Ceil(v.PaymentDeadline.Sub(now).Hours() / 24))
}

// CanBePaid reports whether a payment may be initiated against this
// record. An open dispute does not block settlement; the contest is a
// separate dimension and the fine stays payable throughout.
func (v *ViolationRecord) CanBePaid() bool {
	return v.Status.IsPayable()
}

// HasOpenDispute reports whether a filed dispute is still awaiting a
// ruling.
func (v *ViolationRecord) HasOpenDispute() bool {
	return v.IsDisputed && v.DisputeStatus != nil && *v.DisputeStatus == enums.DisputeStatusPending
}

// CanBeDisputed reports whether a dispute may be filed. Paid, dismissed
// and cancelled violations are settled; a record accepts exactly one
// dispute ever, so a rejected one cannot be refiled.
func (v *ViolationRecord) CanBeDisputed() bool {
	if v.IsDisputed {
		return false
	}
	switch v.Status {
	case enums.ViolationStatusPending, enums.ViolationStatusOverdue:
		return true
	default:
		return false
	}
}

// SubmitDispute files a contest against the record. The status is left
// untouched; the dispute lives entirely in the sub-state fields.
func (v *ViolationRecord) SubmitDispute(reason string, at time.Time) error {
	if !v.CanBeDisputed() {
		return fmt.Errorf("violation %s cannot be disputed in status %s", v.OVRNumber, v.Status)
	}
	pending := enums.DisputeStatusPending
	v.IsDisputed = true
	v.DisputeReason = &reason
	v.DisputeDate = &at
	v.DisputeStatus = &pending
	return nil
}

// ResolveDispute applies the ruling on an open dispute. Approval
// dismisses the violation; rejection changes nothing but the sub-state,
// and the record keeps its dispute history so it cannot be refiled.
func (v *ViolationRecord) ResolveDispute(approved bool) error {
	if !v.HasOpenDispute() {
		return fmt.Errorf("violation %s has no open dispute", v.OVRNumber)
	}

	if approved {
		ruled := enums.DisputeStatusApproved
		v.DisputeStatus = &ruled
		v.Status = enums.ViolationStatusDismissed
		return nil
	}
	ruled := enums.DisputeStatusRejected
	v.DisputeStatus = &ruled
	return nil
}

// MarkAsPaid records the completed settlement on the violation.
func (v *ViolationRecord) MarkAsPaid(method enums.PaymentMethod, reference string, at time.Time) error {
	if !v.CanBePaid() {
		return fmt.Errorf("violation %s cannot be paid in status %s", v.OVRNumber, v.Status)
	}
	v.Status = enums.ViolationStatusPaid
	v.PaymentMethod = &method
	v.PaymentReference = &reference
	v.PaymentDate = &at
	return nil
}

// Cancel voids a citation that was issued in error.
func (v *ViolationRecord) Cancel() error {
	if v.Status.IsTerminal() {
		return fmt.Errorf("violation %s is already settled as %s", v.OVRNumber, v.Status)
	}
	if v.HasOpenDispute() {
		return fmt.Errorf("violation %s has an open dispute", v.OVRNumber)
	}
	v.Status = enums.ViolationStatusCancelled
	return nil
}
