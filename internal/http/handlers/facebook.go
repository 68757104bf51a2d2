package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/contactdesk/server/internal/chat"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/validate"
)

// BotActions are the customer-facing bot actions triggered by button replies
type BotActions interface {
	ActionConnect(ctx context.Context, cid string, ch model.Channel) error
	ActionNone(ctx context.Context, cid string, ch model.Channel) error
}

// FacebookHandler handles GET|POST /webhook-facebook
type FacebookHandler struct {
	bot         BotActions
	verifyToken string
	log         *slog.Logger
}

// NewFacebookHandler creates a new Messenger webhook handler
func NewFacebookHandler(bot BotActions, verifyToken string) *FacebookHandler {
	return &FacebookHandler{
		bot:         bot,
		verifyToken: verifyToken,
		log:         slog.Default().With("component", "webhook-facebook"),
	}
}

type facebookEvent struct {
	Entry []struct {
		Messaging []struct {
			Postback *struct {
				Payload json.RawMessage `json:"payload"`
			} `json:"postback"`
		} `json:"messaging"`
	} `json:"entry"`
}

// ServeHTTP verifies the subscription on GET and runs postback actions on POST
func (h *FacebookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.challenge(w, r)
	case http.MethodPost:
		h.postback(w, r)
	default:
		respondText(w, http.StatusMethodNotAllowed, "Invalid method")
	}
}

func (h *FacebookHandler) challenge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge := q.Get("hub.challenge")
	if q.Get("hub.mode") != "subscribe" || challenge == "" || h.verifyToken == "" ||
		q.Get("hub.verify_token") != h.verifyToken {
		h.log.Warn("invalid challenge", "mode", q.Get("hub.mode"))
		respondText(w, http.StatusForbidden, "Invalid challenge")
		return
	}
	h.log.Info("challenge is verified")
	respondText(w, http.StatusOK, challenge)
}

func (h *FacebookHandler) postback(w http.ResponseWriter, r *http.Request) {
	payload, err := parsePostback(r)
	if err != nil {
		h.log.Error("error in facebook webhook", "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch payload.Action {
	case "connect":
		h.log.Info("postback action connect", "cid", payload.CID)
		err = h.bot.ActionConnect(r.Context(), payload.CID, model.ChannelMessenger)
	case "none":
		h.log.Info("postback action none", "cid", payload.CID)
		err = h.bot.ActionNone(r.Context(), payload.CID, model.ChannelMessenger)
	default:
		respondText(w, http.StatusMethodNotAllowed, "Invalid action")
		return
	}
	// action failures are logged and acknowledged like successes
	if err != nil {
		h.log.Error("error running postback action", "action", payload.Action, "cid", payload.CID, "err", err)
	}
	respondText(w, http.StatusOK, "postback")
}

// parsePostback extracts entry[0].messaging[0].postback.payload. The payload may arrive as a
// JSON encoded string or as an object.
func parsePostback(r *http.Request) (chat.Postback, error) {
	raw, err := readBody(r)
	if err != nil {
		return chat.Postback{}, err
	}
	var ev facebookEvent
	if err := validate.DecodeJSON(bytes.NewReader(raw), &ev); err != nil {
		return chat.Postback{}, err
	}
	if len(ev.Entry) == 0 || len(ev.Entry[0].Messaging) == 0 || ev.Entry[0].Messaging[0].Postback == nil {
		return chat.Postback{}, errors.New("event is not a postback")
	}

	data := ev.Entry[0].Messaging[0].Postback.Payload
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return chat.Postback{}, err
		}
		data = []byte(s)
	}

	var p chat.Postback
	if err := validate.DecodeJSON(bytes.NewReader(data), &p); err != nil {
		return chat.Postback{}, err
	}
	v := validate.New()
	v.Required("cid", p.CID)
	v.Required("action", p.Action)
	if err := v.Err(); err != nil {
		return chat.Postback{}, err
	}
	return p, nil
}
