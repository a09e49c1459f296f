package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/signing"
)

// Handler exposes the order signing endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Orders handles POST /api/orders.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	h.signed(w, r, h.Svc.Checkout)
}

// VerifyCard handles POST /api/verify-card.
func (h *Handler) VerifyCard(w http.ResponseWriter, r *http.Request) {
	h.signed(w, r, h.Svc.VerifyCard)
}

// VerifySignature handles POST /api/orders/verify.
func (h *Handler) VerifySignature(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payload  string `json:"payload"`
		Checksum string `json:"checksum"`
		APIKey   string `json:"apiKey"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	res, err := h.Svc.Verify(r.Context(), body.Payload, body.Checksum, body.APIKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, res)
}

func (h *Handler) signed(w http.ResponseWriter, r *http.Request, fn func(context.Context, Input) (signing.SignedOrder, error)) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	in.ForwardedProto = r.Header.Get("X-Forwarded-Proto")

	out, err := fn(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, out)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Msg("order signing failed")
	}
	common.WriteError(w, err)
}

