package notify

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type RecipientKind string

const (
	RecipientCustomer   RecipientKind = "customer"
	RecipientDriver     RecipientKind = "driver"
	RecipientRestaurant RecipientKind = "restaurant"
)

// Intent is a notification the core wants delivered. Delivery itself is
// someone else's problem; the core's obligation ends at producing the intent.
type Intent struct {
	RecipientKind RecipientKind `json:"recipient_kind"`
	RecipientID   string        `json:"recipient_id,omitempty"`
	Type          string        `json:"type"`
	Message       string        `json:"message"`
	OrderID       uuid.UUID     `json:"order_id"`
}

type Notifier interface {
	Notify(ctx context.Context, intent Intent) error
}

// LogNotifier writes intents to the log. Used when no broker is configured
// and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, intent Intent) error {
	log.Info().
		Str("recipient_kind", string(intent.RecipientKind)).
		Str("recipient_id", intent.RecipientID).
		Str("type", intent.Type).
		Stringer("order_id", intent.OrderID).
		Msg(intent.Message)
	return nil
}
