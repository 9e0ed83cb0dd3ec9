package api

import (
	"errors"
	"strconv"
	"time"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/observability"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"

	ctxRequestID = "requestId"
	ctxActor     = "actor"
)

// RequestID propagates the caller's request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"requestId": c.GetString(ctxRequestID),
			"method":    c.Request.Method,
			"route":     c.FullPath(),
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"clientIp":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.Last().Error()
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request failed", fields)
		case c.Writer.Status() >= 400:
			log.Info("request rejected", fields)
		default:
			log.Debug("request handled", fields)
		}
	}
}

// Metrics records request count and duration through the OpenTelemetry meter.
func Metrics(obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.RecordRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Authenticate resolves the staff actor from the X-User-ID header set by the auth gateway.
func Authenticate(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			writeError(c, apperrors.NewUnauthorizedError("missing or malformed "+HeaderUserID))
			return
		}
		u, err := users.GetUser(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperrors.NewUnauthorizedError("unknown user"))
			return
		}
		if err != nil {
			writeError(c, apperrors.NewDatabaseError("get_user", err))
			return
		}
		if !u.IsActive {
			writeError(c, apperrors.NewUnauthorizedError("user is inactive"))
			return
		}
		c.Set(ctxActor, models.UserActor(u))
		c.Next()
	}
}

func actorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.Actor{}
}

// RateLimit throttles by client IP, so guesses spread over many tokens share one bucket.
func RateLimit(limiter Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := "ratelimit:candidate:" + c.ClientIP()
		if !limiter.Allow(c.Request.Context(), key, limit, window) {
			writeError(c, apperrors.NewRateLimitedError())
			return
		}
		c.Next()
	}
}
