package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tgiokas/dms-auth/internal/auth"
	"github.com/tgiokas/dms-auth/internal/background"
	"github.com/tgiokas/dms-auth/internal/cache"
	"github.com/tgiokas/dms-auth/internal/config"
	"github.com/tgiokas/dms-auth/internal/database"
	"github.com/tgiokas/dms-auth/internal/gateway"
	"github.com/tgiokas/dms-auth/internal/handlers"
	"github.com/tgiokas/dms-auth/internal/metrics"
	middlewareCustom "github.com/tgiokas/dms-auth/internal/middleware"
	"github.com/tgiokas/dms-auth/internal/notify"
	"github.com/tgiokas/dms-auth/internal/repositories"
	"github.com/tgiokas/dms-auth/internal/routes"
	"github.com/tgiokas/dms-auth/internal/services"
	pkglogger "github.com/tgiokas/dms-auth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Ephemeral store
	var store cache.Store
	var sweepManager *background.SweepManager
	switch cfg.Cache.Driver {
	case "redis":
		store = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	default:
		memory := cache.NewMemory()
		store = memory
		sweepManager = background.NewSweepManager(memory, logger, cfg.Cache.SweepInterval)
	}

	// Identity provider gateway. One Keycloak client implements the token,
	// user directory, and role directory capabilities.
	keycloak := gateway.NewKeycloakClient(gateway.KeycloakConfig{
		BaseURL:           cfg.Keycloak.BaseURL,
		Realm:             cfg.Keycloak.Realm,
		ClientID:          cfg.Keycloak.ClientID,
		ClientSecret:      cfg.Keycloak.ClientSecret,
		AdminClientID:     cfg.Keycloak.AdminClientID,
		AdminClientSecret: cfg.Keycloak.AdminClientSecret,
		Timeout:           cfg.Keycloak.Timeout,
	}, store, logger)

	// Access-token verification for protected routes
	verifier, err := auth.NewTokenVerifier([]byte(cfg.Auth.TokenPublicKeyPEM), cfg.Auth.TokenIssuer)
	if err != nil {
		logger.Error("failed to initialize token verifier", slog.Any("error", err))
		os.Exit(1)
	}

	// Outbound delivery
	emailClient, err := notify.NewSESEmailClient(cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
	if err != nil {
		logger.Error("failed to initialize email client", slog.Any("error", err))
		os.Exit(1)
	}
	notifier := notify.NewNotifier(emailClient, notify.NewLogSMSClient(logger), cfg.Email.ResetURLBase, logger)

	// Repositories
	secondFactorRepo := repositories.NewTotpSecretRepository(db.Pool)
	ruleRepo := repositories.NewRuleRepository(db.Pool)

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	totpEngine := auth.NewTotpEngine(cfg.Auth.TotpIssuer)
	timingDelay := auth.NewTimingDelay(cfg.Auth.TimingDelayBase, cfg.Auth.TimingDelayJitter)

	loginService := services.NewLoginService(
		keycloak, keycloak, secondFactorRepo, store, totpEngine, notifier,
		auditLogger, timingDelay, logger,
	)
	mfaService := services.NewMFAService(secondFactorRepo, store, totpEngine, auditLogger, logger)
	ruleService := services.NewRuleService(ruleRepo, keycloak, auditLogger, logger)
	authzEngine := services.NewAuthorizationEngine(ruleRepo, logger)

	// Handlers
	authHandler := handlers.NewAuthHandler(loginService, cfg.Server.TrustedProxies, logger)
	mfaHandler := handlers.NewMFAHandler(mfaService, cfg.Server.TrustedProxies, logger)
	ruleHandler := handlers.NewRuleHandler(ruleService, cfg.Server.TrustedProxies, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(
		router,
		authHandler, mfaHandler, ruleHandler,
		auth.Authenticate(verifier),
		middlewareCustom.Authorize(authzEngine, logger),
		routes.RateLimit{Requests: cfg.Auth.LoginRateLimit, Window: cfg.Auth.LoginRateWindow},
	)

	router.Handle("/metrics", metrics.Handler())

	// Health check with database and cache
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","cache":"down"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up","cache":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start sweep task for the memory store
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if sweepManager != nil {
		go sweepManager.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweepManager != nil {
		sweepManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
