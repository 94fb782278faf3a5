package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"persona_relay/internal/config"
	"persona_relay/internal/entities"
	"persona_relay/internal/infrastructure"
	httpapi "persona_relay/internal/interfaces/http"
	"persona_relay/internal/repository"
	"persona_relay/internal/usecases"
)

func main() {
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, entities.ErrConfigurationMissing) {
			bootLog.Fatal().Err(err).Msg("refusing to start with missing configuration")
		}
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log, err := infrastructure.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("invalid log configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential store
	store, err := infrastructure.OpenStore(ctx, cfg.KVURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open credential store")
	}
	defer store.Close()

	credentials := repository.NewCredentialRepository(store, repository.CredentialPolicy{
		Prefix:    cfg.CredentialPrefix,
		MinLength: cfg.CredentialMinLength,
	}, cfg.StoreTimeout)
	if cfg.CredentialSealingKey != "" {
		sealer, err := infrastructure.NewSecretBox(cfg.CredentialSealingKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid CREDENTIAL_SEALING_KEY")
		}
		credentials.WithSealer(sealer)
	}

	// Personas
	tables := [][]entities.Persona{usecases.DefaultPersonas}
	if cfg.PersonasFile != "" {
		extra, err := config.LoadPersonaFile(cfg.PersonasFile)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load personas")
		}
		tables = append(tables, extra)
	}
	personas, err := usecases.NewPersonaRegistry(tables...)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid persona table")
	}

	// Telegram
	telegram, err := infrastructure.NewTelegramClient(cfg.TelegramToken, cfg.TelegramTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}
	log.Info().Str("bot", telegram.Username()).Msg("telegram bot connected")

	gateway := infrastructure.NewGeminiGateway(infrastructure.GeminiConfig{
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})

	limiter := infrastructure.NewMessageRateLimiter(cfg.ChatRatePerMinute, cfg.ChatRateBurst)
	go limiter.Run(ctx)

	dispatcher := usecases.NewDispatchService(
		credentials,
		personas,
		usecases.NewClassifier(personas, telegram.Username()),
		gateway,
		telegram,
		limiter,
		log,
		usecases.DispatchConfig{
			PublicBaseURL:   cfg.PublicBaseURL,
			ProviderTimeout: cfg.ProviderTimeout,
		},
	)

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	httpapi.SetupRoutes(r, httpapi.RouteDeps{
		Dispatcher:  dispatcher,
		Tracker:     infrastructure.NewDeliveryTracker(10 * time.Minute),
		Store:       store,
		Credentials: credentials,
		Personas:    personas,
		Logger:      log,
	}, httpapi.RouteConfig{
		WebhookPath:    cfg.WebhookPath,
		WebhookSecret:  cfg.WebhookSecret,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// deliveries wait for the provider, so leave room beyond PROVIDER_TIMEOUT
		WriteTimeout: cfg.ProviderTimeout + 2*cfg.StoreTimeout + 2*cfg.TelegramTimeout + 15*time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("webhook_path", cfg.WebhookPath).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if cfg.RegisterWebhook {
		if err := telegram.RegisterWebhook(cfg.WebhookURL()); err != nil {
			log.Error().Err(err).Msg("webhook registration failed")
		} else {
			log.Info().Str("url", cfg.WebhookURL()).Msg("webhook registered")
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
