package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/ovrpay/ovrpay-backend/pkg/config"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("gateway access token is required")
	errLocationRequired    = errors.New("gateway location id is required")
	errInvalidGatewayEnv   = fmt.Errorf("gateway environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("gateway logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://connect.squareupsandbox.com",
	productionEnv: "https://connect.squareup.com",
}

// SquareAdapter charges and refunds through Square with centralized
// auth, logging, idempotency and error mapping.
type SquareAdapter struct {
	sdk         *sqclient.Client
	environment string
	locationID  string
	logger      *logger.Logger
}

// NewSquareAdapter initializes the Square wrapper and validates the credentials.
func NewSquareAdapter(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*SquareAdapter, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}
	locationID := strings.TrimSpace(cfg.LocationID)
	if locationID == "" {
		return nil, errLocationRequired
	}

	sdk := sqclient.NewClient(
		sqoption.WithBaseURL(baseURLs[env]),
		sqoption.WithToken(accessToken),
	)

	a := &SquareAdapter{
		sdk:         sdk,
		environment: env,
		locationID:  locationID,
		logger:      logg,
	}

	logg.Info(ctx, "square gateway initialized")
	return a, nil
}

// Environment reports the normalized Square environment.
func (a *SquareAdapter) Environment() string {
	if a == nil {
		return ""
	}
	return a.environment
}

// Charge submits a payment to Square.
func (a *SquareAdapter) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	currency := sq.Currency(strings.ToUpper(req.Currency))
	money := &sq.Money{
		Amount:   sq.Int64(toMinorUnits(req)),
		Currency: &currency,
	}

	sdkReq := &sq.CreatePaymentRequest{
		SourceID:       req.SourceToken,
		IdempotencyKey: ensureIdempotencyKey("payment.create", req.IdempotencyKey),
		AmountMoney:    money,
		LocationID:     sq.String(a.locationID),
		ReferenceID:    sq.String(req.ReferenceNumber),
		Note:           sq.String(req.Note),
	}

	a.log(ctx, "request", "create_payment", map[string]any{
		"location_id": a.locationID,
		"reference":   req.ReferenceNumber,
		"amount":      req.Amount.String(),
	})

	resp, err := a.sdk.Payments.Create(ctx, sdkReq)
	if err != nil {
		a.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, a.mapSquareError(err, "create payment")
	}

	payment := resp.GetPayment()
	a.log(ctx, "response", "create_payment", map[string]any{
		"payment_id": stringValue(payment.GetID()),
		"status":     stringValue(payment.GetStatus()),
	})

	return &ChargeResult{
		TransactionID: stringValue(payment.GetID()),
		Reference:     stringValue(payment.GetReferenceID()),
		RawResponse:   marshalRaw(payment),
	}, nil
}

// Refund returns the full amount of a prior charge to the payer.
func (a *SquareAdapter) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	currency := sq.Currency(strings.ToUpper(req.Currency))
	money := &sq.Money{
		Amount:   sq.Int64(req.Amount.Shift(2).Round(0).IntPart()),
		Currency: &currency,
	}

	sdkReq := &sq.RefundPaymentRequest{
		IdempotencyKey: ensureIdempotencyKey("payment.refund", req.IdempotencyKey),
		AmountMoney:    money,
		PaymentID:      sq.String(req.TransactionID),
		Reason:         sq.String(req.Reason),
	}

	a.log(ctx, "request", "refund_payment", map[string]any{
		"payment_id": req.TransactionID,
		"amount":     req.Amount.String(),
	})

	resp, err := a.sdk.Refunds.RefundPayment(ctx, sdkReq)
	if err != nil {
		a.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, a.mapSquareError(err, "refund payment")
	}

	refund := resp.GetRefund()
	refundID := refund.GetID()
	a.log(ctx, "response", "refund_payment", map[string]any{
		"refund_id": refundID,
		"status":    refund.GetStatus(),
	})

	return &RefundResult{
		RefundID:    refundID,
		RawResponse: marshalRaw(refund),
	}, nil
}

func toMinorUnits(req ChargeRequest) int64 {
	return req.Amount.Shift(2).Round(0).IntPart()
}

func ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func marshalRaw(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (a *SquareAdapter) log(ctx context.Context, phase, op string, fields map[string]any) {
	if a == nil || a.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = a.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		a.logger.Error(ctx, fmt.Sprintf("square %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		a.logger.Info(ctx, fmt.Sprintf("square %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone", "source"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (a *SquareAdapter) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	var apiErr *sqcore.APIError
	if errors.As(err, &apiErr) {
		code := domainCodeForStatus(apiErr.StatusCode)
		for _, sqErr := range extractSquareErrors(apiErr) {
			if sqErr == nil {
				continue
			}
			if sqErr.Code == sq.ErrorCodeIdempotencyKeyReused {
				code = pkgerrors.CodeIdempotency
				break
			}
			if sqErr.Category == sq.ErrorCategoryAuthenticationError {
				code = pkgerrors.CodeUnauthorized
				break
			}
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("square %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("square %s failed", op))
}

func extractSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil {
		return nil
	}
	inner := apiErr.Unwrap()
	if inner == nil {
		return nil
	}
	raw := strings.TrimSpace(inner.Error())
	if raw == "" {
		return nil
	}
	var payload struct {
		Errors []*sq.Error `json:"errors"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Errors
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		// Declines, bad requests and processor outages all surface as
		// gateway failures so payment state handling stays uniform.
		return pkgerrors.CodeGateway
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidGatewayEnv
	}
}
