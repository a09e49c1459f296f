package events

import "strings"

// Topics for payment widget lifecycle callbacks.
const (
	TopicWidgetReady           = "widget.ready"
	TopicWidgetError           = "widget.error"
	TopicWidgetPaymentComplete = "widget.payment_complete"
)

// DefaultTopics returns every topic the bus accepts.
func DefaultTopics() []string {
	return []string{
		TopicWidgetReady,
		TopicWidgetError,
		TopicWidgetPaymentComplete,
	}
}

var callbackTopics = map[string]string{
	"onready":           TopicWidgetReady,
	"onerror":           TopicWidgetError,
	"onpaymentcomplete": TopicWidgetPaymentComplete,
}

// NormalizeTopic maps a topic or widget callback name (onReady, onError,
// onPaymentComplete) onto a known topic. ok is false for anything else.
func NormalizeTopic(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, t := range DefaultTopics() {
		if name == t {
			return t, true
		}
	}
	t, ok := callbackTopics[strings.ToLower(name)]
	return t, ok
}
