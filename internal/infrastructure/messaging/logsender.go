package messaging

import (
	"context"

	"github.com/smalob/marketplace/internal/domain/order"
	"github.com/smalob/marketplace/internal/observability"
)

const componentMessaging = "messaging"

// LogSender stands in for the external SMS/email provider. Confirmation
// messages are advisory, so logging them is enough for this deployment; a
// real provider slots in behind the checkout.Messenger port.
type LogSender struct {
	log observability.Logger
}

func NewLogSender(logger observability.Logger) *LogSender {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogSender{log: logger.With(observability.F("component", componentMessaging))}
}

func (s *LogSender) OrderConfirmation(ctx context.Context, o *order.Order) error {
	_ = ctx
	s.log.Info("order_confirmation_sent",
		observability.F("order_id", o.ID),
		observability.F("recipient", o.CustomerInfo.Phone),
		observability.F("total", o.TotalPrice.String()),
	)
	return nil
}
