package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/contactdesk/server/internal/rtc"
	"github.com/contactdesk/server/internal/validate"
)

// EventDispatcher runs the handler of a conversation event
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev rtc.Event) error
}

// RTCHandler handles POST /webhook-rtc-event
type RTCHandler struct {
	events EventDispatcher
	log    *slog.Logger
}

// NewRTCHandler creates a new conversation event handler
func NewRTCHandler(events EventDispatcher) *RTCHandler {
	return &RTCHandler{
		events: events,
		log:    slog.Default().With("component", "webhook-rtc-event"),
	}
}

// HandleEvent acknowledges every well-formed event. Handler failures are reported in the body
// with status 200 so the vendor does not retry them.
func (h *RTCHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ev, err := rtc.Parse(raw)
	if err != nil {
		h.log.Error("error parsing event", "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.events.Dispatch(r.Context(), ev); err != nil {
		if _, invalid := validate.Issues(err); invalid {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondWithError(w, http.StatusOK, err.Error())
		return
	}

	respondRaw(w, raw)
}
