package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SignedOrdersTotal counts signing outcomes by flow (checkout, verify_card) and result.
	SignedOrdersTotal *prometheus.CounterVec
	// SignatureChecksTotal counts payload/checksum verification outcomes.
	SignatureChecksTotal *prometheus.CounterVec
	// CardProxyTotal counts card proxy calls by operation and result.
	CardProxyTotal *prometheus.CounterVec
	// WidgetEventsTotal counts relayed widget lifecycle events.
	WidgetEventsTotal *prometheus.CounterVec
	// CredentialChangesTotal counts credential store updates per key.
	CredentialChangesTotal *prometheus.CounterVec
	// RateLimitedTotal counts requests rejected by the rate limiter per route.
	RateLimitedTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal counts widget webhook deliveries by result.
	WebhookDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the payment demo collectors.
// Only the first call has an effect.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		counter := func(name, help string, labels ...string) *prometheus.CounterVec {
			return register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, labels))
		}
		SignedOrdersTotal = counter("signed_orders_total", "Count of order signing outcomes.", "flow", "result")
		SignatureChecksTotal = counter("signature_checks_total", "Count of payload checksum verifications by result.", "result")
		CardProxyTotal = counter("card_proxy_total", "Count of card proxy calls by operation and result.", "operation", "result")
		WidgetEventsTotal = counter("widget_events_total", "Count of payment widget lifecycle events.", "topic")
		CredentialChangesTotal = counter("credential_changes_total", "Count of credential store updates.", "key")
		RateLimitedTotal = counter("rate_limited_total", "Count of requests rejected by the rate limiter.", "route")
		WebhookDeliveriesTotal = counter("webhook_deliveries_total", "Count of widget webhook deliveries by result.", "result")
	})
}

// IncSignedOrder records a signing outcome when domain metrics are registered.
func IncSignedOrder(flow, result string) {
	if SignedOrdersTotal != nil {
		SignedOrdersTotal.WithLabelValues(flow, result).Inc()
	}
}

// IncSignatureCheck records a verification outcome when domain metrics are registered.
func IncSignatureCheck(result string) {
	if SignatureChecksTotal != nil {
		SignatureChecksTotal.WithLabelValues(result).Inc()
	}
}

// IncCardProxy records a card proxy outcome when domain metrics are registered.
func IncCardProxy(operation, result string) {
	if CardProxyTotal != nil {
		CardProxyTotal.WithLabelValues(operation, result).Inc()
	}
}

// IncWidgetEvent records a widget event when domain metrics are registered.
func IncWidgetEvent(topic string) {
	if WidgetEventsTotal != nil {
		WidgetEventsTotal.WithLabelValues(topic).Inc()
	}
}

// IncCredentialChange records a credential update when domain metrics are registered.
func IncCredentialChange(key string) {
	if CredentialChangesTotal != nil {
		CredentialChangesTotal.WithLabelValues(key).Inc()
	}
}

// IncRateLimited records a rejected request.
func IncRateLimited(route string) {
	if RateLimitedTotal != nil {
		RateLimitedTotal.WithLabelValues(routeLabel(route)).Inc()
	}
}

func IncWebhookDelivery(result string) {
	if WebhookDeliveriesTotal != nil {
		WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
}
