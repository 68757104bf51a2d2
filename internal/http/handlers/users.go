package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/validate"
	"github.com/contactdesk/server/internal/vonage"
)

// Profiles stores the local side of a user
type Profiles interface {
	GetByID(ctx context.Context, userID uuid.UUID) (model.UserProfile, error)
	Upsert(ctx context.Context, profile model.UserProfile) (model.UserProfile, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// VendorUserWriter creates and deletes users in the conversation backend
type VendorUserWriter interface {
	CreateUser(ctx context.Context, user vonage.User) (vonage.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserWebhookHandler mirrors sign-ups and account deletions into the conversation backend
type UserWebhookHandler struct {
	profiles Profiles
	vendor   VendorUserWriter
	log      *slog.Logger
}

// NewUserWebhookHandler creates a new database webhook handler for auth users
func NewUserWebhookHandler(profiles Profiles, vendor VendorUserWriter) *UserWebhookHandler {
	return &UserWebhookHandler{
		profiles: profiles,
		vendor:   vendor,
		log:      slog.Default().With("component", "new-user"),
	}
}

type authUserRecord struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	RawUserMetaData *struct {
		Name         string `json:"name"`
		AvatarURL    string `json:"avatar_url"`
		VonageUserID string `json:"vonage_user_id"`
	} `json:"raw_user_meta_data"`
}

type userWebhook struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Schema    string          `json:"schema"`
	Record    *authUserRecord `json:"record"`
	OldRecord *authUserRecord `json:"old_record"`
}

func (wh userWebhook) validate() (uuid.UUID, error) {
	v := validate.New()
	v.Required("type", wh.Type)
	v.Required("table", wh.Table)
	v.Required("schema", wh.Schema)

	var rec *authUserRecord
	path := ""
	switch wh.Type {
	case "INSERT":
		rec, path = wh.Record, "record"
	case "DELETE":
		rec, path = wh.OldRecord, "old_record"
	default:
		return uuid.Nil, v.Err()
	}
	if rec == nil {
		v.Add(path, "invalid_type", "Required")
		return uuid.Nil, v.Err()
	}
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		v.Add(path+".id", "invalid_string", "Invalid uuid")
	}
	if wh.Type == "INSERT" {
		v.Required(path+".email", rec.Email)
	}
	return id, v.Err()
}

// HandleUserWebhook handles POST /webhook-new-user
func (h *UserWebhookHandler) HandleUserWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		h.respondInternal(w, err)
		return
	}

	var wh userWebhook
	var userID uuid.UUID
	err = validate.DecodeJSON(bytes.NewReader(raw), &wh)
	if err == nil {
		userID, err = wh.validate()
	}
	if err != nil {
		h.log.Warn("invalid webhook", "err", err)
		issues, _ := validate.Issues(err)
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"code":        "invalid_webhook",
			"description": "The webhook was invalid",
			"error":       issues,
		})
		return
	}

	switch wh.Type {
	case "INSERT":
		user, err := h.createUser(r.Context(), userID, wh.Record)
		if err != nil {
			h.respondInternal(w, err)
			return
		}
		respondJSON(w, http.StatusOK, user)
	case "DELETE":
		if err := h.deleteUser(r.Context(), userID, wh.OldRecord); err != nil {
			h.respondInternal(w, err)
			return
		}
		respondJSON(w, http.StatusOK, struct{}{})
	default:
		respondJSON(w, http.StatusResetContent, struct{}{})
	}
}

func (h *UserWebhookHandler) createUser(ctx context.Context, userID uuid.UUID, rec *authUserRecord) (vonage.User, error) {
	user := vonage.User{Name: rec.Email}
	if md := rec.RawUserMetaData; md != nil {
		user.DisplayName = md.Name
		user.ImageURL = md.AvatarURL
	}

	created, err := h.vendor.CreateUser(ctx, user)
	if err != nil {
		return vonage.User{}, fmt.Errorf("create vendor user: %w", err)
	}

	vonageID := created.ID
	_, err = h.profiles.Upsert(ctx, model.UserProfile{
		UserID:       userID,
		Username:     rec.Email,
		DisplayName:  user.DisplayName,
		Role:         model.RoleAgent,
		VonageUserID: &vonageID,
	})
	if err != nil {
		return vonage.User{}, fmt.Errorf("save profile: %w", err)
	}
	h.log.Info("user created", "user_id", userID, "vonage_user_id", vonageID)
	return created, nil
}

// deleteUser removes the vendor user. The id comes from the auth metadata, or from the stored
// profile when the metadata never got it.
func (h *UserWebhookHandler) deleteUser(ctx context.Context, userID uuid.UUID, rec *authUserRecord) error {
	vonageID := ""
	if rec.RawUserMetaData != nil {
		vonageID = rec.RawUserMetaData.VonageUserID
	}

	profile, err := h.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		if vonageID == "" && profile.VonageUserID != nil {
			vonageID = *profile.VonageUserID
		}
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}
	if vonageID == "" {
		return errors.New("missing vonage_user_id")
	}

	if err := h.vendor.DeleteUser(ctx, vonageID); err != nil {
		return fmt.Errorf("delete vendor user: %w", err)
	}
	if err := h.profiles.Delete(ctx, userID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("delete profile: %w", err)
	}
	h.log.Info("user deleted", "user_id", userID, "vonage_user_id", vonageID)
	return nil
}

func (h *UserWebhookHandler) respondInternal(w http.ResponseWriter, err error) {
	h.log.Error("error handling user webhook", "err", err)
	respondJSON(w, http.StatusInternalServerError, map[string]string{
		"code":        "internal_server_error",
		"description": "Something went wrong",
		"error":       err.Error(),
	})
}
