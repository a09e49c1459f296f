package events

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/xmoney-playground/internal/common"
)

// Handler relays browser widget callbacks into the bus.
type Handler struct {
	Bus    *Bus
	Logger zerolog.Logger
}

type emitRequest struct {
	Topic   string          `json:"topic"`
	OrderID string          `json:"orderId"`
	Payload json.RawMessage `json:"payload"`
}

// Emit handles POST /api/widget-events.
func (h *Handler) Emit(w http.ResponseWriter, r *http.Request) {
	var body emitRequest
	if err := common.DecodeJSON(r, &body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if _, ok := NormalizeTopic(body.Topic); !ok {
		common.JSONError(w, http.StatusBadRequest, "Unknown event topic", map[string]any{"topics": DefaultTopics()})
		return
	}
	ev, err := h.Bus.Emit(r.Context(), body.Topic, body.OrderID, []byte(body.Payload))
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			common.JSONError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if ev.ID == uuid.Nil {
			h.Logger.Error().Err(err).Str("topic", body.Topic).Msg("emit widget event")
			common.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
			return
		}
		// delivered, but some notifier failed
		h.Logger.Warn().Err(err).Str("topic", ev.Topic).Msg("widget event notifier")
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"id": ev.ID, "topic": ev.Topic})
}

// Recent handles GET /api/widget-events.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil || h.Bus.Store == nil {
		common.JSON(w, http.StatusOK, map[string]any{"data": []Event{}})
		return
	}
	rows, err := h.Bus.Store.Recent(r.Context(), common.QueryInt(r, "limit", 20, defaultKeep))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list widget events")
		common.JSONError(w, http.StatusInternalServerError, "Internal server error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
