package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/xmoney-playground/internal/events"
	"github.com/noah-isme/xmoney-playground/internal/xmoney"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

const paymentComplete = `{"id":9001,"siteId":1,"orderId":77,"customerId":5,"transactionType":"deposit","transactionMethod":"card","transactionStatus":"complete-ok","ip":null,"amount":"100.00","currency":"EUR","amountInEur":"100.00","description":"Test Order","creationDate":"2024-01-01 10:00:00","cardProviderName":"VISA","cardType":"visa","cardNumber":"411111******1111","cardExpiryDate":"12/30","cardHolderName":null}`

func TestEmitFansOut(t *testing.T) {
	store := &events.MemoryStore{}
	first, second := &captureNotifier{}, &captureNotifier{}
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{first, nil, second}, Now: func() time.Time { return at }}

	ev, err := bus.Emit(context.Background(), "onPaymentComplete", "order-1", json.RawMessage(paymentComplete))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.Equal(t, events.TopicWidgetPaymentComplete, ev.Topic)
	require.Equal(t, at, ev.OccurredAt)
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)

	td, err := events.DecodePaymentComplete(ev.Payload)
	require.NoError(t, err)
	require.Equal(t, xmoney.ID("9001"), td.ID)
	require.True(t, td.TransactionStatus.Succeeded())

	recent, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, ev.ID, recent[0].ID)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("boom")
	called := 0
	bus := events.Bus{Notifiers: []events.Notifier{
		events.NotifierFunc(func(context.Context, events.Event) error { called++; return boom }),
		events.NotifierFunc(func(context.Context, events.Event) error { called++; return nil }),
	}}
	ev, err := bus.Emit(context.Background(), events.TopicWidgetReady, "", nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, called)
	require.NotEqual(t, uuid.Nil, ev.ID)
	require.JSONEq(t, `{}`, string(ev.Payload))
}

func TestEmitValidatesPayload(t *testing.T) {
	bus := events.Bus{}
	ctx := context.Background()

	_, err := bus.Emit(ctx, "widget.unknown", "", nil)
	require.Error(t, err)

	_, err = bus.Emit(ctx, events.TopicWidgetError, "", json.RawMessage(`{}`))
	require.ErrorIs(t, err, events.ErrInvalidPayload)

	_, err = bus.Emit(ctx, events.TopicWidgetPaymentComplete, "", json.RawMessage(`{"id":1}`))
	require.ErrorIs(t, err, events.ErrInvalidPayload)

	ev, err := bus.Emit(ctx, "onError", "", json.RawMessage(`"Card declined"`))
	require.NoError(t, err)
	we, err := events.DecodeWidgetError(ev.Payload)
	require.NoError(t, err)
	require.Equal(t, "Card declined", we.Message)

	ev, err = bus.Emit(ctx, events.TopicWidgetError, "", map[string]any{"code": 3001, "message": "Invalid checksum"})
	require.NoError(t, err)
	we, err = events.DecodeWidgetError(ev.Payload)
	require.NoError(t, err)
	require.Equal(t, events.WidgetError{Code: "3001", Message: "Invalid checksum"}, we)
}

func TestRedisStoreCapsHistory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := events.RedisStore{R: client, Keep: 3}
	bus := events.Bus{Store: store}
	var last events.Event
	for i := 0; i < 5; i++ {
		last, err = bus.Emit(context.Background(), events.TopicWidgetReady, "", nil)
		require.NoError(t, err)
	}
	recent, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	require.Equal(t, last.ID, recent[0].ID)
}

func TestLogNotifierSkipsPayload(t *testing.T) {
	var buf bytes.Buffer
	n := events.LogNotifier{Logger: zerolog.New(&buf)}
	bus := events.Bus{Notifiers: []events.Notifier{n}}
	_, err := bus.Emit(context.Background(), events.TopicWidgetPaymentComplete, "order-1", json.RawMessage(paymentComplete))
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"transaction_id":"9001"`)
	require.Contains(t, buf.String(), `"message":"widget_event"`)
	require.NotContains(t, buf.String(), "411111")
}

func TestHandler(t *testing.T) {
	store := &events.MemoryStore{}
	h := &events.Handler{Bus: &events.Bus{Store: store, Notifiers: []events.Notifier{events.MetricsNotifier{}}}}

	rr := httptest.NewRecorder()
	h.Emit(rr, httptest.NewRequest(http.MethodPost, "/api/widget-events", strings.NewReader(`{"topic":"onReady","orderId":"order-1"}`)))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, rr.Body.String(), `"topic":"widget.ready"`)

	rr = httptest.NewRecorder()
	h.Emit(rr, httptest.NewRequest(http.MethodPost, "/api/widget-events", strings.NewReader(`{"topic":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Emit(rr, httptest.NewRequest(http.MethodPost, "/api/widget-events", strings.NewReader(`{"topic":"widget.error","payload":{}}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/widget-events?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Data []events.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	require.Equal(t, "order-1", out.Data[0].OrderID)
}
