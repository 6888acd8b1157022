// Package disputes handles contesting a citation and ruling on the
// contest. Dispute state lives on the violation record itself.
package disputes

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ovrpay/ovrpay-backend/internal/violations"
	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
)

const (
	minReasonLength = 10
	maxReasonLength = 1000
)

// Notifier fans out dispute lifecycle events.
type Notifier interface {
	DisputeSubmitted(ctx context.Context, record *models.ViolationRecord)
	DisputeResolved(ctx context.Context, record *models.ViolationRecord, approved bool)
}

// SubmitInput is the payload for filing a dispute.
type SubmitInput struct {
	ViolationID uuid.UUID `json:"-"`
	Reason      string    `json:"reason" validate:"required,min=10,max=1000"`
}

// ResolveInput is the payload for ruling on an open dispute.
type ResolveInput struct {
	ViolationID uuid.UUID `json:"-"`
	Approve     bool      `json:"approve"`
	Notes       *string   `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Service defines dispute filing and resolution.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*violations.ViolationView, error)
	Resolve(ctx context.Context, input ResolveInput) (*violations.ViolationView, error)
}

type service struct {
	repo     violations.Repository
	notifier Notifier
	now      func() time.Time
}

// NewService wires dispute dependencies.
func NewService(repo violations.Repository, notifier Notifier) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "violations repository required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	return &service{repo: repo, notifier: notifier, now: time.Now}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*violations.ViolationView, error) {
	if input.ViolationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation id required")
	}
	reason := strings.TrimSpace(input.Reason)
	if n := utf8.RuneCountInString(reason); n < minReasonLength || n > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason must be between 10 and 1000 characters").
			WithDetails(map[string]any{"min": minReasonLength, "max": maxReasonLength})
	}

	record, err := s.repo.GetByID(ctx, input.ViolationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get violation")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}

	fromStatus := record.Status
	if err := record.SubmitDispute(reason, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "submit dispute")
	}

	updated, err := s.repo.SaveTransition(ctx, record, fromStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit dispute")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "violation changed concurrently")
	}

	s.notifier.DisputeSubmitted(ctx, record)
	return violations.NewView(record, s.now()), nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*violations.ViolationView, error) {
	if input.ViolationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "violation id required")
	}

	record, err := s.repo.GetByID(ctx, input.ViolationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get violation")
	}
	if record == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "violation not found")
	}

	fromStatus := record.Status
	if err := record.ResolveDispute(input.Approve); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "resolve dispute")
	}

	updated, err := s.repo.SaveTransition(ctx, record, fromStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "violation changed concurrently")
	}

	s.notifier.DisputeResolved(ctx, record, input.Approve)
	return violations.NewView(record, s.now()), nil
}
