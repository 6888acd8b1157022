package violations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/ovrpay/ovrpay-backend/pkg/db"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/fines"
	"github.com/ovrpay/ovrpay-backend/pkg/pagination"
	"github.com/ovrpay/ovrpay-backend/pkg/refnum"
)

// Reference number suffixes are random, so a same-month collision is
// possible and the insert retries with fresh numbers.
const refnumMaxRetries = 3

// Notifier fans out violation lifecycle events. Implementations must not
// block the request path on delivery.
type Notifier interface {
	ViolationIssued(ctx context.Context, record *models.ViolationRecord)
}

// Service defines citation issuance and lookup operations.
type Service interface {
	Create(ctx context.Context, input CreateViolationInput) (*ViolationView, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ViolationView, error)
	LookupByOVR(ctx context.Context, ovrNumber string) (*ViolationView, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Cancel(ctx context.Context, id uuid.UUID) (*ViolationView, error)
}

type service struct {
	repo     Repository
	refnums  *refnum.Generator
	fines    *fines.Calculator
	notifier Notifier
	now      func() time.Time
}

// ListParams configures filtering and pagination for violation listings.
type ListParams struct {
	PlateNumber string
	Status      string
	EnforcerID  *uuid.UUID
	Limit       int
	Cursor      string
}

// ListResult wraps returned violations and the cursor for the next page.
type ListResult struct {
	Items  []*ViolationView `json:"items"`
	Cursor string           `json:"cursor"`
}

// NewService wires violation dependencies.
func NewService(repo Repository, refnums *refnum.Generator, calc *fines.Calculator, notifier Notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "violations repository required")
	}
	if refnums == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reference number generator required")
	}
	if calc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "fine calculator required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &service{
		repo:     repo,
		refnums:  refnums,
		fines:    calc,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateViolationInput) (*ViolationView, error) {
	vehicleType, err := enums.ParseVehicleType(input.VehicleType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vehicle type")
	}
	violationType, err := enums.ParseViolationType(input.ViolationType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid violation type")
	}
	if _, err := time.Parse("15:04", input.ViolationTime); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation time must be HH:MM")
	}
	if input.EnforcerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "enforcer id required")
	}

	totalFine, err := s.fines.TotalFine(input.BaseFine, input.AdditionalPenalties)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fine amounts")
	}
	deadline, err := s.fines.PaymentDeadline(input.ViolationDate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid violation date")
	}

	record := &models.ViolationRecord{
		PlateNumber:   input.PlateNumber,
		VehicleType:   vehicleType,
		VehicleMake:   input.VehicleMake,
		VehicleModel:  input.VehicleModel,
		VehicleColor:  input.VehicleColor,
		DriverName:    input.DriverName,
		DriverLicense: input.DriverLicense,
		DriverPhone:   input.DriverPhone,
		OwnerUserID:   input.OwnerUserID,

		ViolationType: violationType,
		Description:   input.Description,
		Location:      input.Location,
		ViolationDate: input.ViolationDate,
		ViolationTime: input.ViolationTime,

		BaseFine:            input.BaseFine,
		AdditionalPenalties: input.AdditionalPenalties,
		TotalFine:           totalFine,
		DemeritPoints:       input.DemeritPoints,

		DueDate:         deadline,
		PaymentDeadline: deadline,
		Status:          enums.ViolationStatusPending,

		EnforcerID:    input.EnforcerID,
		EnforcerName:  input.EnforcerName,
		EnforcerBadge: input.EnforcerBadge,
	}

	if err := s.createWithFreshNumbers(ctx, record); err != nil {
		return nil, err
	}

	s.notifier.ViolationIssued(ctx, record)
	return NewView(record, s.now()), nil
}

func (s *service) createWithFreshNumbers(ctx context.Context, record *models.ViolationRecord) error {
	backoff := retry.WithMaxRetries(refnumMaxRetries, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ovr, err := s.refnums.Generate(refnum.KindViolation)
		if err != nil {
			return err
		}
		cit, err := s.refnums.Generate(refnum.KindCitation)
		if err != nil {
			return err
		}
		record.ID = uuid.Nil
		record.OVRNumber = ovr
		record.CitationNumber = cit

		if err := s.repo.Create(ctx, record); err != nil {
			if db.IsUniqueViolation(err, "") {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create violation")
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*ViolationView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation id required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get violation")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}
	return NewView(record, s.now()), nil
}

func (s *service) LookupByOVR(ctx context.Context, ovrNumber string) (*ViolationView, error) {
	if !refnum.Validate(refnum.KindViolation, ovrNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid OVR number")
	}
	record, err := s.repo.GetByOVRNumber(ctx, ovrNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup violation")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}
	return NewView(record, s.now()), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListQuery{
		PlateNumber: params.PlateNumber,
		EnforcerID:  params.EnforcerID,
		Limit:       params.Limit,
	}
	if params.Status != "" {
		status, err := enums.ParseViolationStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list violations")
	}

	now := s.now()
	items := make([]*ViolationView, 0, len(rows))
	for i := range rows {
		items = append(items, NewView(&rows[i], now))
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: items, Cursor: cursor}, nil
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*ViolationView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation id required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get violation")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}

	fromStatus := record.Status
	if err := record.Cancel(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cancel violation")
	}

	updated, err := s.repo.SaveTransition(ctx, record, fromStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel violation")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "violation changed concurrently")
	}
	return NewView(record, s.now()), nil
}
