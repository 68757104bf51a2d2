package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/contactdesk/server/internal/vonage"
)

// Directory lists conversations and users of the vendor application
type Directory interface {
	ListConversations(ctx context.Context, query url.Values) (json.RawMessage, error)
	ListUsers(ctx context.Context, query url.Values) (json.RawMessage, error)
	FindUserByName(ctx context.Context, name string) ([]vonage.User, error)
}

// AdminHandler serves the admin listing endpoints
type AdminHandler struct {
	dir Directory
	log *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(dir Directory) *AdminHandler {
	return &AdminHandler{
		dir: dir,
		log: slog.Default().With("component", "admin"),
	}
}

// pageParams are forwarded to the vendor list calls unchanged
var pageParams = []string{"page_size", "order", "cursor"}

func pageQuery(r *http.Request) url.Values {
	q := url.Values{}
	for _, key := range pageParams {
		if v := r.URL.Query().Get(key); v != "" {
			q.Set(key, v)
		}
	}
	return q
}

// HandleConversations handles GET /admin-get-conversations
func (h *AdminHandler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	page, err := h.dir.ListConversations(r.Context(), pageQuery(r))
	if err != nil {
		h.log.Error("error listing conversations", "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondRaw(w, page)
}

// HandleUsers handles GET /admin-get-users. With ?name= only the users of that name are listed.
func (h *AdminHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		users, err := h.dir.FindUserByName(r.Context(), name)
		if err != nil {
			h.log.Error("error finding user", "name", name, "err", err)
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if users == nil {
			users = []vonage.User{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"_embedded": map[string]interface{}{"users": users},
		})
		return
	}

	page, err := h.dir.ListUsers(r.Context(), pageQuery(r))
	if err != nil {
		h.log.Error("error listing users", "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondRaw(w, page)
}
