package app_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/xmoney-playground/internal/app"
	"github.com/noah-isme/xmoney-playground/internal/config"
	"github.com/noah-isme/xmoney-playground/internal/signing"
)

func baseConfig(upstream string) *config.Config {
	return &config.Config{
		AppEnv:            "test",
		VitePort:          "5173",
		XMoneyTestBaseURL: upstream,
		XMoneyLiveBaseURL: upstream,
		OutboundTimeout:   2 * time.Second,
		RetryMaxAttempts:  1,
		CredentialsStore:  config.StoreMemory,
		RateLimitMax:      100,
		RateLimitWindow:   time.Minute,
		BodyLimitBytes:    1 << 16,
		IdempotencyTTL:    time.Minute,
		SecurityHeaders:   true,
	}
}

func newServer(t *testing.T, cfg *config.Config, rdb *redis.Client) *httptest.Server {
	t.Helper()
	deps, err := app.Build(cfg, zerolog.Nop(), rdb)
	require.NoError(t, err)
	srv := httptest.NewServer(app.NewRouter(deps))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return res, out
}

func TestHealthAndMethodNotAllowed(t *testing.T) {
	srv := newServer(t, baseConfig(""), nil)

	res, out := do(t, http.MethodGet, srv.URL+"/api/health", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", out["status"])
	require.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	for _, path := range []string{"/api/orders", "/api/verify-card", "/api/get-cards", "/api/delete-card"} {
		res, out = do(t, http.MethodGet, srv.URL+path, "")
		require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode, path)
		require.Equal(t, "Method not allowed", out["error"])
	}

	res, _ = do(t, http.MethodGet, srv.URL+"/health/ready", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSignOrderThroughRouter(t *testing.T) {
	srv := newServer(t, baseConfig(""), nil)

	res, out := do(t, http.MethodPost, srv.URL+"/api/orders", `{"amount":12.5,"currency":"EUR","publicKey":"pk_test_9","apiKey":"tok"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	payload, checksum := out["payload"].(string), out["checksum"].(string)
	require.NoError(t, signing.Default.Verify(payload, checksum, "tok"))

	res, out = do(t, http.MethodPost, srv.URL+"/api/orders/verify", `{"payload":"`+payload+`","checksum":"`+checksum+`","apiKey":"tok"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, true, out["valid"])

	res, out = do(t, http.MethodPost, srv.URL+"/api/orders", `{"publicKey":"pk_test_9"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "Missing credentials", out["error"])
}

func TestCardProxyThroughRouter(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.URL.Path == "/customer":
			_, _ = io.WriteString(w, `{"code":200,"data":[]}`)
		case strings.HasPrefix(r.URL.Path, "/card/"):
			_, _ = io.WriteString(w, `{"code":200,"message":"Deleted"}`)
		}
	}))
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	srv := newServer(t, baseConfig(upstream.URL), rdb)

	res, out := do(t, http.MethodPost, srv.URL+"/api/get-cards", `{"customerIdentifier":"nobody","apiKey":"tok"}`)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, "Customer not found", out["error"])
	require.Equal(t, float64(404), out["code"])

	res, out = do(t, http.MethodPost, srv.URL+"/api/delete-card", `{"cardId":7,"apiKey":"tok"}`, "Idempotency-Key", "del-7")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "Deleted", out["message"])

	res, _ = do(t, http.MethodPost, srv.URL+"/api/delete-card", `{"cardId":7,"apiKey":"tok"}`, "Idempotency-Key", "del-7")
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCredentialsRoutesAreOptional(t *testing.T) {
	srv := newServer(t, baseConfig(""), nil)
	res, _ := do(t, http.MethodGet, srv.URL+"/api/credentials", "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	cfg := baseConfig("")
	cfg.CredentialsAPIEnabled = true
	cfg.CredentialsFallback = true
	srv = newServer(t, cfg, nil)

	res, _ = do(t, http.MethodPut, srv.URL+"/api/credentials", `{"publicKey":"pk_test_3","secretKey":"sk_test_stored"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, out := do(t, http.MethodGet, srv.URL+"/api/credentials", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "3", out["siteId"])
	require.NotContains(t, out["secretKey"], "stored")

	res, out = do(t, http.MethodPost, srv.URL+"/api/orders", `{}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, signing.Default.Verify(out["payload"].(string), out["checksum"].(string), "stored"))
}

func TestRateLimitAndBodyLimit(t *testing.T) {
	cfg := baseConfig("")
	cfg.RateLimitMax = 1
	cfg.BodyLimitBytes = 48
	srv := newServer(t, cfg, nil)

	res, _ := do(t, http.MethodPost, srv.URL+"/api/orders", `{"publicKey":"pk_test_1","apiKey":"tok","description":"far too long for the limit"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)

	res, _ = do(t, http.MethodPost, srv.URL+"/api/verify-card", `{"publicKey":"pk_test_1","apiKey":"t"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, out := do(t, http.MethodPost, srv.URL+"/api/verify-card", `{"publicKey":"pk_test_1","apiKey":"t"}`)
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	require.Equal(t, "Too many requests", out["error"])
}

func TestWidgetEventsRoundTrip(t *testing.T) {
	srv := newServer(t, baseConfig(""), nil)

	res, out := do(t, http.MethodPost, srv.URL+"/api/widget-events", `{"topic":"onError","orderId":"order-1","payload":{"code":"E1","message":"declined"}}`)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.Equal(t, "widget.error", out["topic"])

	res, _ = do(t, http.MethodPost, srv.URL+"/api/widget-events", `{"topic":"widget.unknown"}`)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = do(t, http.MethodGet, srv.URL+"/api/widget-events?limit=5", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	cfg := baseConfig("")
	cfg.CORSAllowedOrigins = []string{"http://localhost:5173"}
	srv := newServer(t, cfg, nil)

	res, _ := do(t, http.MethodOptions, srv.URL+"/api/orders", "",
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", http.MethodPost)
	require.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))
}

func TestPaymentCompleteReachesMerchantWebhook(t *testing.T) {
	hits := make(chan string, 2)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- r.Header.Get("X-Event-ID")
	}))
	t.Cleanup(hook.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := baseConfig("")
	cfg.WidgetWebhookURL = strings.Replace(hook.URL, "127.0.0.1", "localhost", 1)
	cfg.WidgetWebhookSecret = "whsec"
	cfg.WidgetWebhookTopics = []string{"widget.payment_complete"}
	cfg.WidgetWebhookTimeout = time.Second
	srv := newServer(t, cfg, rdb)

	res, _ := do(t, http.MethodPost, srv.URL+"/api/widget-events", `{"topic":"onReady"}`)
	require.Equal(t, http.StatusAccepted, res.StatusCode)

	complete := `{"topic":"onPaymentComplete","orderId":"order-9","payload":{"id":77,"transactionStatus":"complete-ok"}}`
	res, out := do(t, http.MethodPost, srv.URL+"/api/widget-events", complete)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.Equal(t, out["id"], <-hits)

	// the widget may fire the same callback again
	res, again := do(t, http.MethodPost, srv.URL+"/api/widget-events", complete)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	require.NotEqual(t, out["id"], again["id"])
	require.Empty(t, hits)
}
