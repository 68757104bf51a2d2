package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/contactdesk/server/internal/auth"
	"github.com/contactdesk/server/internal/http/handlers"
	"github.com/contactdesk/server/internal/middleware"
)

// Handlers groups the endpoint handlers served by the router
type Handlers struct {
	Devices  *handlers.DeviceHandler
	RTC      *handlers.RTCHandler
	Facebook *handlers.FacebookHandler
	Voice    *handlers.VoiceHandler
	Inbound  *handlers.InboundHandler
	Users    *handlers.UserWebhookHandler
	Token    *handlers.TokenHandler
	Admin    *handlers.AdminHandler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, jwtService *auth.JWTService, devicesLimiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	// Client-facing functions. CORS sits outermost so preflights are answered before auth
	// and rate limiting.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS)

		r.Route("/devices", func(r chi.Router) {
			r.Use(middleware.RateLimitMiddleware(devicesLimiter, middleware.GetIPKey))
			r.Use(middleware.OptionalAuthMiddleware(jwtService))
			r.Post("/", h.Devices.HandleDevices)
			r.Options("/", h.Devices.HandleDevices)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(jwtService))
			r.Post("/admin-new-token", h.Token.HandleNewToken)
			r.Options("/admin-new-token", h.Token.HandleNewToken)
			r.Get("/admin-get-conversations", h.Admin.HandleConversations)
			r.Options("/admin-get-conversations", h.Admin.HandleConversations)
			r.Get("/admin-get-users", h.Admin.HandleUsers)
			r.Options("/admin-get-users", h.Admin.HandleUsers)
		})
	})

	// Vendor and database webhooks
	r.Post("/webhook-rtc-event", h.RTC.HandleEvent)
	r.Handle("/webhook-facebook", h.Facebook)
	r.Post("/webhook-voice-answer", h.Voice.HandleAnswer)
	r.Post("/webhook-voice-event", h.Voice.HandleEvent)
	r.Post("/webhook-message-inbound", h.Inbound.HandleInbound)
	r.Post("/webhook-new-user", h.Users.HandleUserWebhook)

	return r
}
