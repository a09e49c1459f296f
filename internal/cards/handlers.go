package cards

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/common"
	"github.com/noah-isme/xmoney-playground/internal/xmoney"
)

// Handler exposes the card proxy endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type getCardsRequest struct {
	CustomerIdentifier string `json:"customerIdentifier"`
	APIKey             string `json:"apiKey"`
	IsLive             bool   `json:"isLive"`
}

type deleteCardRequest struct {
	CardID xmoney.ID `json:"cardId"`
	APIKey string    `json:"apiKey"`
	IsLive bool      `json:"isLive"`
}

// GetCards handles POST /api/get-cards.
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	var body getCardsRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	res, err := h.Svc.List(r.Context(), body.CustomerIdentifier, xmoney.Auth{APIKey: body.APIKey, IsLive: body.IsLive})
	if err != nil {
		h.writeError(w, err, "fetch customer cards")
		return
	}
	common.JSON(w, http.StatusOK, res)
}

// DeleteCard handles POST /api/delete-card.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	var body deleteCardRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	res, err := h.Svc.Delete(r.Context(), body.CardID, xmoney.Auth{APIKey: body.APIKey, IsLive: body.IsLive})
	if err != nil {
		h.writeError(w, err, "delete card")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		switch {
		case appErr.Code == common.CodeUpstream:
			h.Logger.Warn().Int("status", appErr.HTTPStatus).Str("op", op).Msg("upstream rejected card call")
		case appErr.HTTPStatus >= http.StatusInternalServerError:
			h.Logger.Error().Err(err).Str("op", op).Msg("card proxy failed")
		}
	}
	common.WriteError(w, err)
}

