package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/contactdesk/server/internal/auth"
	"github.com/contactdesk/server/internal/chat"
	"github.com/contactdesk/server/internal/config"
	"github.com/contactdesk/server/internal/db"
	"github.com/contactdesk/server/internal/dedupe"
	httphandler "github.com/contactdesk/server/internal/http"
	"github.com/contactdesk/server/internal/http/handlers"
	"github.com/contactdesk/server/internal/logging"
	"github.com/contactdesk/server/internal/messenger"
	"github.com/contactdesk/server/internal/middleware"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/rtc"
	"github.com/contactdesk/server/internal/vonage"
)

const (
	// redelivered conversation events are acknowledged without re-running handlers for this long
	eventDedupeTTL  = 10 * time.Minute
	eventDedupeSize = 10000

	devicesRateWindow = 10 * time.Minute
	devicesRateLimit  = 60
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Create context for startup operations
	ctx := context.Background()

	// Open database connection
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	// Run migrations
	if err := db.Migrate(ctx, database); err != nil {
		return err
	}

	// Initialize repositories
	userRepo := repo.NewUserRepo(database)
	deviceRepo := repo.NewDeviceRepo(database)
	deviceCodeRepo := repo.NewDeviceCodeRepo(database)
	presenceRepo := repo.NewPresenceRepo(database)

	// Vendor credentials and clients
	minter, err := auth.NewVonageMinter(cfg.VonagePrivateKey, cfg.VonageApplicationID)
	if err != nil {
		return err
	}
	conversations, err := vonage.New(cfg.VonageEndpoint, minter, cfg.VonageTimeout)
	if err != nil {
		return err
	}
	graph := messenger.New("", cfg.FacebookPageAccessToken, cfg.VonageTimeout)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.SupabaseJWTSecret)
	deviceCodes := auth.NewDeviceCodes(deviceCodeRepo, cfg.DeviceCodeSalt)
	deviceService := auth.NewDeviceService(deviceRepo, userRepo, presenceRepo, deviceCodes, minter, cfg.DeviceRefreshTokenSecret)

	catalog, err := chat.DefaultCatalog()
	if err != nil {
		return err
	}
	bot := chat.NewActions(conversations, presenceRepo, catalog, cfg.BotName)
	events := rtc.NewRouter(userRepo, presenceRepo, conversations, bot, dedupe.NewWindow(eventDedupeTTL, eventDedupeSize))

	// Initialize handlers
	h := httphandler.Handlers{
		Devices:  handlers.NewDeviceHandler(deviceService),
		RTC:      handlers.NewRTCHandler(events),
		Facebook: handlers.NewFacebookHandler(bot, cfg.VerifyToken),
		Voice:    handlers.NewVoiceHandler(presenceRepo, cfg.VonageLVN, cfg.VoiceInboundMode == config.VoiceInboundConversation),
		Inbound:  handlers.NewInboundHandler(conversations, graph, bot),
		Users:    handlers.NewUserWebhookHandler(userRepo, conversations),
		Token:    handlers.NewTokenHandler(userRepo, minter),
		Admin:    handlers.NewAdminHandler(conversations),
	}

	devicesLimiter := middleware.NewRateLimiter(devicesRateWindow, devicesRateLimit)
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go devicesLimiter.RunCleanup(time.Hour, stopCleanup)

	// Create router
	router := httphandler.NewRouter(h, jwtService, devicesLimiter)

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "application_id", minter.ApplicationID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return err
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
