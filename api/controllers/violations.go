package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ovrpay/ovrpay-backend/api/middleware"
	"github.com/ovrpay/ovrpay-backend/api/responses"
	"github.com/ovrpay/ovrpay-backend/api/validators"
	"github.com/ovrpay/ovrpay-backend/internal/violations"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

// CreateViolation issues a new citation. Enforcer identity comes from
// the access token.
func CreateViolation(svc violations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "violations service unavailable"))
			return
		}

		var input violations.CreateViolationInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		enforcerID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid enforcer identity"))
			return
		}
		input.EnforcerID = enforcerID
		input.EnforcerName = middleware.UserNameFromContext(r.Context())
		input.EnforcerBadge = middleware.BadgeFromContext(r.Context())

		view, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// GetViolation returns a single violation by ID.
func GetViolation(svc violations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "violations service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid violation id"))
			return
		}

		view, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// LookupViolation is the public citizen lookup by OVR number.
func LookupViolation(svc violations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "violations service unavailable"))
			return
		}

		ovrNumber := strings.TrimSpace(chi.URLParam(r, "ovrNumber"))
		view, err := svc.LookupByOVR(r.Context(), ovrNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListViolations returns paginated violations with optional filters.
func ListViolations(svc violations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "violations service unavailable"))
			return
		}

		params := violations.ListParams{
			PlateNumber: strings.TrimSpace(r.URL.Query().Get("plateNumber")),
			Status:      strings.TrimSpace(r.URL.Query().Get("status")),
			Cursor:      strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = value
		}

		if enforcer := strings.TrimSpace(r.URL.Query().Get("enforcerId")); enforcer != "" {
			id, err := uuid.Parse(enforcer)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid enforcer id"))
				return
			}
			params.EnforcerID = &id
		}

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// CancelViolation voids a citation that has not reached a terminal state.
func CancelViolation(svc violations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "violations service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid violation id"))
			return
		}

		view, err := svc.Cancel(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
