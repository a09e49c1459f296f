package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/xmoney-playground/internal/events"
	"github.com/noah-isme/xmoney-playground/internal/obs"
	"github.com/noah-isme/xmoney-playground/internal/resilience"
)

// Webhook forwards widget events to a merchant endpoint. Each POST carries
// X-Event-ID, X-Timestamp and an X-Signature computed by ComputeSignature.
type Webhook struct {
	URL    string
	Secret string
	// Topics limits delivery; empty means every topic.
	Topics    []string
	HTTP      resilience.HTTPClient
	Replay    ReplayProtector
	ReplayTTL time.Duration
	Now       func() time.Time
}

// NewWebhook validates rawURL and returns a Webhook with a traced client
// behind its own circuit breaker.
func NewWebhook(rawURL, secret string, topics []string, timeout time.Duration) (*Webhook, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		URL:    rawURL,
		Secret: secret,
		Topics: topics,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(resilience.Settings{Target: "widget-webhook"}),
			Target:      "widget-webhook",
			MaxAttempts: 1,
			Timeout:     timeout,
		},
	}, nil
}

type webhookBody struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	OrderID    string          `json:"orderId,omitempty"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Notify delivers event once. Non-2xx answers are errors.
func (w *Webhook) Notify(ctx context.Context, event events.Event) error {
	if w == nil || w.URL == "" {
		return nil
	}
	if len(w.Topics) > 0 && !slices.Contains(w.Topics, event.Topic) {
		return nil
	}
	ctx, span := otel.Tracer("notify.Webhook").Start(ctx, "Webhook.Notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.topic", event.Topic),
		attribute.String("webhook.event_id", event.ID.String()),
	)

	if w.Replay != nil && w.ReplayTTL > 0 {
		ok, err := w.Replay.Acquire(ctx, replayKey(event), w.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("webhook replay guard: %w", err)
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			obs.IncWebhookDelivery("replay_suppressed")
			return nil
		}
	}

	data := event.Payload
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(webhookBody{
		EventID:    event.ID.String(),
		Topic:      event.Topic,
		OrderID:    event.OrderID,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "xmoney-playground-webhooks/1.0")
	req.Header.Set("X-Event-ID", event.ID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(w.Secret, ts, event.ID.String(), body))

	resp, err := w.HTTP.Do(ctx, req)
	if err != nil {
		w.release(event)
		obs.IncWebhookDelivery("failed")
		span.RecordError(err)
		return fmt.Errorf("deliver %s: %w", event.Topic, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.release(event)
		obs.IncWebhookDelivery("failed")
		return fmt.Errorf("deliver %s: status %d", event.Topic, resp.StatusCode)
	}
	obs.IncWebhookDelivery("delivered")
	return nil
}

// release drops the replay guard so a later emit of the same event can retry.
func (w *Webhook) release(event events.Event) {
	if w.Replay != nil && w.ReplayTTL > 0 {
		_ = w.Replay.Release(context.Background(), replayKey(event))
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload. The
// format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ReplayProtector guards against sending duplicate deliveries within a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// replayKey identifies a delivery by what happened, not by the emit. A
// payment_complete callback is keyed on its transaction id; other topics on
// their payload bytes. Both are scoped by topic and order.
func replayKey(event events.Event) string {
	identity := event.Topic + "\x00" + event.OrderID + "\x00"
	td, err := events.DecodePaymentComplete(event.Payload)
	if event.Topic == events.TopicWidgetPaymentComplete && err == nil && td.ID != "" {
		identity += "tx:" + td.ID.String()
	} else {
		sum := sha256.Sum256(event.Payload)
		identity += "body:" + hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(identity))
	return "xmoney:webhook:" + hex.EncodeToString(sum[:])
}
