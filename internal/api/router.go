// Package api exposes the onboarding lifecycle over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/observability"
	"hire-onboarding/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar mounts extra routes on the root engine.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRoutes)
}

type Config struct {
	Service       RequestService
	Batch         BatchApprover
	Users         store.UserStore
	Webhook       RouteRegistrar
	Limiter       Limiter
	CandidateRate struct {
		Limit  int
		Window time.Duration
	}
	Observability *observability.Observability
	Readiness     map[string]Pinger
	Logger        logger.Logger
}

func NewRouter(cfg Config) *gin.Engine {
	log := logger.ForComponent(cfg.Logger, "api")

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log), Metrics(cfg.Observability))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "timestamp": time.Now().Unix()})
	})
	r.GET("/ready", readyHandler(cfg.Readiness))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Webhook != nil {
		cfg.Webhook.RegisterRoutes(r)
	}

	v1 := r.Group("/api/v1")

	candidate := v1.Group("")
	candidate.Use(RateLimit(cfg.Limiter, cfg.CandidateRate.Limit, cfg.CandidateRate.Window))
	NewCandidateHandler(cfg.Service).RegisterRoutes(candidate)

	staff := v1.Group("")
	staff.Use(Authenticate(cfg.Users))
	NewRequestHandler(cfg.Service, cfg.Batch).RegisterRoutes(staff)

	return r
}

func readyHandler(checks map[string]Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
	}
}
