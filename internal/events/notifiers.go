package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/obs"
)

// LogNotifier writes one structured line per event. Payloads are not logged.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	evt := n.Logger.Info()
	switch event.Topic {
	case TopicWidgetError:
		evt = n.Logger.Warn()
		if we, err := DecodeWidgetError(event.Payload); err == nil {
			evt = evt.Str("widget_code", we.Code).Str("widget_message", we.Message)
		}
	case TopicWidgetPaymentComplete:
		if td, err := DecodePaymentComplete(event.Payload); err == nil {
			evt = evt.Str("transaction_id", td.ID.String()).Str("transaction_status", string(td.TransactionStatus))
		}
	}
	evt.Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("order_id", event.OrderID).
		Msg("widget_event")
	return nil
}

// MetricsNotifier counts events per topic.
type MetricsNotifier struct{}

func (MetricsNotifier) Notify(_ context.Context, event Event) error {
	obs.IncWidgetEvent(event.Topic)
	return nil
}
