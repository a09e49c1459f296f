package credentials

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/obs"
)

// Locker serialises writers of the three credential keys.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Handler exposes the stored credentials to the settings panel. Lock is
// optional; without it concurrent PUTs may interleave their keys.
type Handler struct {
	Store  Store
	Lock   Locker
	Logger zerolog.Logger
}

type putRequest struct {
	SiteID    string `json:"siteId"`
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
}

// Get handles GET /api/credentials. Secrets are masked.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := Load(r.Context(), h.Store)
	if err != nil {
		h.Logger.Error().Err(err).Msg("load credentials")
		common.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	masked := c.Masked()
	common.JSON(w, http.StatusOK, map[string]any{
		"siteId":      masked.SiteID,
		"publicKey":   masked.PublicKey,
		"secretKey":   masked.SecretKey,
		"isLive":      masked.IsLive,
		"environment": Environment(c.SecretKey),
		"configured":  c.Complete(),
	})
}

// Put handles PUT /api/credentials.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var body putRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	c := New(strings.TrimSpace(body.SiteID), strings.TrimSpace(body.PublicKey), strings.TrimSpace(body.SecretKey))
	if err := c.Validate(); err != nil {
		common.JSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, siteID, ok := ParsePublicKey(c.PublicKey); ok && c.SiteID == "" {
		c.SiteID = siteID
	}
	if err := h.save(r.Context(), c); err != nil {
		if errors.Is(err, ErrReadOnly) {
			common.JSONError(w, http.StatusConflict, "Credentials are read-only", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("save credentials")
		common.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	for _, key := range Keys {
		obs.IncCredentialChange(key)
	}
	h.Logger.Info().Str("environment", Environment(c.SecretKey)).Msg("credentials updated")
	common.JSON(w, http.StatusOK, map[string]any{"siteId": c.SiteID, "publicKey": c.PublicKey, "isLive": c.IsLive})
}

func (h *Handler) save(ctx context.Context, c Credentials) error {
	if h.Lock == nil {
		return Save(ctx, h.Store, c)
	}
	return h.Lock.WithLock(ctx, "credentials", 5*time.Second, func(ctx context.Context) error {
		return Save(ctx, h.Store, c)
	})
}
