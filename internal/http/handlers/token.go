package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/auth"
	"github.com/contactdesk/server/internal/middleware"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
)

// UserLookup resolves a user id to its profile
type UserLookup interface {
	GetByID(ctx context.Context, userID uuid.UUID) (model.UserProfile, error)
}

// TokenHandler handles POST /admin-new-token
type TokenHandler struct {
	users  UserLookup
	minter auth.TokenMinter
	log    *slog.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(users UserLookup, minter auth.TokenMinter) *TokenHandler {
	return &TokenHandler{
		users:  users,
		minter: minter,
		log:    slog.Default().With("component", "new-vonage-token"),
	}
}

// HandleNewToken mints an SDK token for the signed-in caller. Agents are named by their e-mail,
// so a caller whose profile is not stored yet gets a token for the e-mail in their access token.
func (h *TokenHandler) HandleNewToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Error getting user")
		return
	}

	var username string
	user, err := h.users.GetByID(r.Context(), userID)
	switch {
	case err == nil:
		username = user.Username
	case errors.Is(err, repo.ErrNotFound):
		email, ok := middleware.GetEmail(r.Context())
		if !ok {
			h.log.Warn("no profile and no e-mail for caller", "user_id", userID)
			respondWithError(w, http.StatusNotFound, "user not found")
			return
		}
		username = email
	default:
		h.log.Error("error getting user profile", "user_id", userID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "Error getting user")
		return
	}

	token, err := h.minter.Mint(username)
	if err != nil {
		h.log.Error("error minting token", "user_id", userID, "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}
