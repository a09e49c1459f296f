package credentials_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/xmoney-playground/internal/credentials"
)

func TestHandlerPutThenGet(t *testing.T) {
	store := credentials.NewMemoryStore()
	h := &credentials.Handler{Store: store}

	rr := httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/api/credentials", strings.NewReader(`{"publicKey":"pk_test_1234","secretKey":"sk_test_abcdef"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	stored, err := credentials.Load(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, "1234", stored.SiteID)
	require.Equal(t, "abcdef", stored.APIKey)

	rr = httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/credentials", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, "pk_test_1234", out["publicKey"])
	require.Equal(t, "**********cdef", out["secretKey"])
	require.Equal(t, "test", out["environment"])
	require.Equal(t, true, out["configured"])
	require.NotContains(t, rr.Body.String(), "sk_test_abcdef")
}

func TestHandlerPutRejectsMismatch(t *testing.T) {
	h := &credentials.Handler{Store: credentials.NewMemoryStore()}
	rr := httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/api/credentials", strings.NewReader(`{"publicKey":"pk_test_1","secretKey":"sk_live_abc"}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "environments differ")
}

func TestHandlerPutReadOnly(t *testing.T) {
	t.Setenv("XMONEY_PUBLIC_KEY", "pk_test_1")
	store, err := credentials.NewEnvStore()
	require.NoError(t, err)
	h := &credentials.Handler{Store: store}

	rr := httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/api/credentials", strings.NewReader(`{"publicKey":"pk_test_1","secretKey":"sk_test_abc"}`)))
	require.Equal(t, http.StatusConflict, rr.Code)
}

type recordingLock struct {
	keys []string
	err  error
}

func (l *recordingLock) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

func TestHandlerPutHoldsLock(t *testing.T) {
	lk := &recordingLock{}
	store := credentials.NewMemoryStore()
	h := &credentials.Handler{Store: store, Lock: lk}

	rr := httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/api/credentials", strings.NewReader(`{"publicKey":"pk_live_9","secretKey":"sk_live_x"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, []string{"credentials"}, lk.keys)

	lk.err = errors.New("lock: not acquired")
	rr = httptest.NewRecorder()
	h.Put(rr, httptest.NewRequest(http.MethodPut, "/api/credentials", strings.NewReader(`{"publicKey":"pk_live_9","secretKey":"sk_live_y"}`)))
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	stored, err := credentials.Load(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, "x", stored.APIKey)
}
