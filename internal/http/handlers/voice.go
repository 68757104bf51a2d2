package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/validate"
	"github.com/contactdesk/server/internal/vonage"
)

const demoGreeting = "This is a Demo of the Vonage Client SDKs using Supabase Functions"

// AgentClaimer atomically reserves an available agent
type AgentClaimer interface {
	ClaimAvailableAgent(ctx context.Context, kind model.Availability) (model.AgentClaim, error)
}

const (
	conversationCodeDigits  = 8
	conversationCodeTimeout = 10
)

// VoiceHandler answers calls and handles call events
type VoiceHandler struct {
	agents             AgentClaimer
	lvn                string
	askForConversation bool
	log                *slog.Logger
}

// NewVoiceHandler creates a new voice webhook handler. lvn is the number presented on
// outbound phone legs. With askForConversation set, inbound callers key in a conversation code
// instead of being routed to an agent.
func NewVoiceHandler(agents AgentClaimer, lvn string, askForConversation bool) *VoiceHandler {
	return &VoiceHandler{
		agents:             agents,
		lvn:                lvn,
		askForConversation: askForConversation,
		log:                slog.Default().With("component", "webhook-voice"),
	}
}

type voiceAnswerRequest struct {
	Kind       string  `json:"kind"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	CustomData *string `json:"custom_data"`
}

type callCustomData struct {
	CallType              string `json:"callType"`
	Callee                string `json:"callee"`
	ConnectToConversation string `json:"connect_to_conversation"`
}

// HandleAnswer handles POST /webhook-voice-answer
func (h *VoiceHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL_SERVER_ERROR", "message": err.Error()})
		return
	}

	var req voiceAnswerRequest
	err = validate.DecodeJSON(bytes.NewReader(raw), &req)
	if err == nil {
		v := validate.New()
		v.Required("kind", req.Kind)
		v.OneOf("kind", req.Kind, "server_call", "inbound_call")
		err = v.Err()
	}
	if err != nil {
		h.respondBadRequest(w, err)
		return
	}

	var ncco vonage.NCCO
	switch req.Kind {
	case "server_call":
		data, err := parseCustomData(req.CustomData)
		if err != nil {
			h.respondBadRequest(w, err)
			return
		}
		h.log.Info("server call received", "call_type", data.CallType)
		ncco = h.serverCall(data)
	case "inbound_call":
		v := validate.New()
		v.Required("from", req.From)
		v.Required("to", req.To)
		if err := v.Err(); err != nil {
			h.respondBadRequest(w, err)
			return
		}
		h.log.Info("inbound call received")
		if h.askForConversation {
			ncco = vonage.NCCO{
				vonage.Prompt("Enter the conversation code followed by #"),
				vonage.InputDigits(conversationCodeDigits, conversationCodeTimeout),
			}
			break
		}
		ncco = h.inboundCall(r.Context())
	}
	respondJSON(w, http.StatusOK, ncco)
}

func (h *VoiceHandler) serverCall(data callCustomData) vonage.NCCO {
	if data.ConnectToConversation != "" {
		return vonage.NCCO{
			vonage.Talk("Hello inapp user, connecting you now, please wait."),
			vonage.JoinConversation(data.ConnectToConversation),
		}
	}
	connect := vonage.ConnectApp(data.Callee)
	if data.CallType == "phone" {
		connect = vonage.ConnectPhone(h.lvn, data.Callee)
	}
	return vonage.NCCO{
		vonage.Talk(demoGreeting),
		vonage.Talk("Connecting you now, please wait."),
		connect,
	}
}

func (h *VoiceHandler) inboundCall(ctx context.Context) vonage.NCCO {
	agent, err := h.agents.ClaimAvailableAgent(ctx, model.AvailabilityVoice)
	if err != nil {
		reason := "there are no agents available at this time"
		if !errors.Is(err, repo.ErrNoAgentAvailable) {
			h.log.Error("error claiming voice agent", "err", err)
			reason = "there was an error fetching available agents"
		}
		return vonage.NCCO{
			vonage.Talk(demoGreeting),
			vonage.Talk("Sorry, " + reason + ", please try again later."),
		}
	}
	h.log.Info("connecting inbound call", "agent", agent.Username)
	return vonage.NCCO{
		vonage.Talk(demoGreeting),
		vonage.Talk("Connecting you now to " + agent.Name() + " now, please wait."),
		vonage.ConnectApp(agent.Username),
	}
}

type voiceEventRequest struct {
	DTMF *struct {
		Digits string `json:"digits"`
	} `json:"dtmf"`
}

// HandleEvent handles POST /webhook-voice-event. Keypad input moves the call into the
// conversation named by the digits; other events need no NCCO.
func (h *VoiceHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL_SERVER_ERROR", "message": err.Error()})
		return
	}

	var req voiceEventRequest
	if err := validate.DecodeJSON(bytes.NewReader(raw), &req); err != nil {
		h.respondBadRequest(w, err)
		return
	}
	if req.DTMF == nil || req.DTMF.Digits == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	digits := req.DTMF.Digits
	h.log.Info("dtmf received", "digits", digits)
	respondJSON(w, http.StatusOK, vonage.NCCO{
		vonage.Talk("You are getting connected to the conversation named " + digits),
		vonage.JoinConversation(digits),
	})
}

func (h *VoiceHandler) respondBadRequest(w http.ResponseWriter, err error) {
	h.log.Warn("invalid voice webhook", "err", err)
	issues, _ := validate.Issues(err)
	if issues == nil {
		issues = []validate.Issue{}
	}
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{
		"code":    "BAD_REQUEST",
		"message": err.Error(),
		"issues":  issues,
	})
}

// parseCustomData decodes the JSON string the client SDK passes with a server call. A call into
// a named conversation needs no callee.
func parseCustomData(s *string) (callCustomData, error) {
	v := validate.New()
	if s == nil {
		v.Add("custom_data", "invalid_type", "Required")
		return callCustomData{}, v.Err()
	}
	var data callCustomData
	if err := json.Unmarshal([]byte(*s), &data); err != nil {
		v.Add("custom_data", "custom", "Invalid JSON: "+err.Error())
		return callCustomData{}, v.Err()
	}
	v.Required("custom_data.callType", data.CallType)
	v.OneOf("custom_data.callType", data.CallType, "app", "phone")
	if data.ConnectToConversation == "" {
		v.Required("custom_data.callee", data.Callee)
	}
	if err := v.Err(); err != nil {
		return callCustomData{}, err
	}
	return data, nil
}
