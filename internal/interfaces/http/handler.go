package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"persona_relay/internal/infrastructure"
	"persona_relay/internal/interfaces"
	"persona_relay/internal/repository"
	"persona_relay/internal/usecases"
)

type RouteConfig struct {
	WebhookPath    string
	WebhookSecret  string
	MaxBodyBytes   int64
	AdminJWTSecret string // admin routes are mounted only when set
}

type RouteDeps struct {
	Dispatcher  Dispatcher
	Tracker     *infrastructure.DeliveryTracker
	Store       interfaces.KVStore
	Credentials *repository.CredentialRepository
	Personas    *usecases.PersonaRegistry
	Logger      zerolog.Logger
}

func SetupRoutes(r *gin.Engine, deps RouteDeps, cfg RouteConfig) {
	webhook := NewWebhookHandler(deps.Dispatcher, deps.Tracker, deps.Logger)

	r.Use(RequestID())
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(cfg.MaxBodyBytes))

	r.POST(cfg.WebhookPath, WebhookSecret(cfg.WebhookSecret), webhook.HandleUpdate)
	r.GET("/healthz", healthz(deps.Store))
	r.GET("/metrics", gin.WrapH(infrastructure.MetricsHandler()))

	if cfg.AdminJWTSecret != "" {
		mw := NewMiddleware(cfg.AdminJWTSecret)
		adminHandler := NewAdminHandler(deps.Credentials, deps.Personas, deps.Logger)

		admin := r.Group("/api/admin")
		admin.Use(mw.AuthRequired())
		admin.Use(mw.RateLimitPerUser(rate.Limit(5), 10))
		adminHandler.RegisterRoutes(admin)
	}
}

func healthz(store interfaces.KVStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
