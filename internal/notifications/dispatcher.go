package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/ovrpay/ovrpay-backend/pkg/db/models"
	"github.com/ovrpay/ovrpay-backend/pkg/enums"
	pkgerrors "github.com/ovrpay/ovrpay-backend/pkg/errors"
	"github.com/ovrpay/ovrpay-backend/pkg/logger"
)

// Event is the payload published for downstream push delivery.
type Event struct {
	Type            enums.NotificationType `json:"type"`
	UserID          *uuid.UUID             `json:"userId,omitempty"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	ReferenceNumber string                 `json:"referenceNumber"`
	OccurredAt      time.Time              `json:"occurredAt"`
}

// EventPublisher hands events to the push fan-out pipeline.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// PubSubEventPublisher publishes events on a Pub/Sub topic.
type PubSubEventPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubSubEventPublisher wraps a topic publisher handle.
func NewPubSubEventPublisher(publisher *pubsub.Publisher) *PubSubEventPublisher {
	return &PubSubEventPublisher{publisher: publisher}
}

// PublishEvent sends the event and waits for the server ack.
func (p *PubSubEventPublisher) PublishEvent(ctx context.Context, event Event) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification event: %w", err)
	}
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type": event.Type.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification event: %w", err)
	}
	return nil
}

// Dispatcher records lifecycle notifications and fans them out. Delivery
// is best effort; failures are logged and never fail the calling request.
type Dispatcher struct {
	repo      Repository
	publisher EventPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NewDispatcher wires the dispatcher. The publisher may be nil when
// Pub/Sub is not configured, in which case events stay in-app only.
func NewDispatcher(repo Repository, publisher EventPublisher, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// ViolationIssued notifies the registered vehicle owner of a new citation.
func (d *Dispatcher) ViolationIssued(ctx context.Context, record *models.ViolationRecord) {
	d.dispatch(ctx, models.Notification{
		UserID:  record.OwnerUserID,
		Type:    enums.NotificationTypeViolationIssued,
		Title:   "Traffic violation issued",
		Message: fmt.Sprintf("A citation for plate %s was issued. Fine of %s is due by %s.", record.PlateNumber, record.TotalFine.StringFixed(2), record.PaymentDeadline.Format("January 2, 2006")),
	}, record.OVRNumber)
}

// PaymentReceipt notifies the payer that a settlement completed.
func (d *Dispatcher) PaymentReceipt(ctx context.Context, payment *models.PaymentTransaction) {
	d.dispatch(ctx, models.Notification{
		UserID:  payment.PayerUserID,
		Type:    enums.NotificationTypePaymentReceipt,
		Title:   "Payment received",
		Message: fmt.Sprintf("Payment of %s for violation %s is complete. Receipt %s.", payment.TotalAmount.StringFixed(2), payment.OVRNumber, payment.ReceiptNumber),
	}, payment.ReceiptNumber)
}

// DisputeSubmitted confirms a dispute was filed and payment is on hold.
func (d *Dispatcher) DisputeSubmitted(ctx context.Context, record *models.ViolationRecord) {
	d.dispatch(ctx, models.Notification{
		UserID:  record.OwnerUserID,
		Type:    enums.NotificationTypeDisputeSubmitted,
		Title:   "Dispute received",
		Message: fmt.Sprintf("Your dispute for violation %s is under review. Payment is on hold until it is resolved.", record.OVRNumber),
	}, record.OVRNumber)
}

// DisputeResolved reports the review outcome.
func (d *Dispatcher) DisputeResolved(ctx context.Context, record *models.ViolationRecord, approved bool) {
	message := fmt.Sprintf("Your dispute for violation %s was rejected. The fine of %s remains due.", record.OVRNumber, record.TotalFine.StringFixed(2))
	if approved {
		message = fmt.Sprintf("Your dispute for violation %s was approved. The citation has been dismissed.", record.OVRNumber)
	}
	d.dispatch(ctx, models.Notification{
		UserID:  record.OwnerUserID,
		Type:    enums.NotificationTypeDisputeResolved,
		Title:   "Dispute resolved",
		Message: message,
	}, record.OVRNumber)
}

// ViolationOverdue warns that the payment deadline has passed.
func (d *Dispatcher) ViolationOverdue(ctx context.Context, record *models.ViolationRecord) {
	d.dispatch(ctx, models.Notification{
		UserID:  record.OwnerUserID,
		Type:    enums.NotificationTypeViolationOverdue,
		Title:   "Violation overdue",
		Message: fmt.Sprintf("The payment deadline for violation %s has passed. Settle the fine of %s to avoid further penalties.", record.OVRNumber, record.TotalFine.StringFixed(2)),
	}, record.OVRNumber)
}

func (d *Dispatcher) dispatch(ctx context.Context, notification models.Notification, referenceNumber string) {
	ctx = d.logg.WithField(ctx, "notification_type", notification.Type.String())

	if err := d.repo.Create(ctx, &notification); err != nil {
		d.logg.Error(ctx, "failed to record notification", err)
	}

	if d.publisher == nil {
		return
	}
	event := Event{
		Type:            notification.Type,
		UserID:          notification.UserID,
		Title:           notification.Title,
		Message:         notification.Message,
		ReferenceNumber: referenceNumber,
		OccurredAt:      d.now().UTC(),
	}
	if err := d.publisher.PublishEvent(ctx, event); err != nil {
		d.logg.Error(ctx, "failed to publish notification event", err)
	}
}
