// cmd/onboarding-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hire-onboarding/internal/api"
	"hire-onboarding/internal/batch"
	"hire-onboarding/internal/common/aws"
	"hire-onboarding/internal/common/camunda"
	"hire-onboarding/internal/common/config"
	"hire-onboarding/internal/common/database"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/observability"
	"hire-onboarding/internal/common/retry"
	"hire-onboarding/internal/esign"
	"hire-onboarding/internal/events"
	"hire-onboarding/internal/notify"
	"hire-onboarding/internal/onboarding"
	"hire-onboarding/internal/store"
	"hire-onboarding/internal/tokens"
	"hire-onboarding/internal/webhook"
)

// connectWithRetry runs operation under an exponential backoff, logging each failure.
func connectWithRetry(ctx context.Context, operationName string, attempts int, log *zap.Logger, operation func() error) error {
	policy := retry.Exponential(attempts, 2*time.Second, 30*time.Second)
	return retry.Poll(ctx, policy, func(_ context.Context, attempt int) (bool, error) {
		if err := operation(); err != nil {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("maxRetries", attempts),
			)
			return false, err
		}
		return true, nil
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting onboarding API...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, log)
	ctx := context.Background()

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = connectWithRetry(ctx, "PostgreSQL connection", 15, zapLog, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	})
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	readiness := map[string]api.Pinger{"postgres": pg}

	// --- Redis (rate limiting and webhook de-duplication; optional) ---
	var (
		limiter api.Limiter
		deduper webhook.Deduper
	)
	if cfg.Database.Redis.Enabled {
		rc := database.NewRedis(cfg.Database.Redis)
		err = connectWithRetry(ctx, "Redis connection", 10, zapLog, func() error {
			return rc.Ping(ctx)
		})
		if err != nil {
			// Redis only backs optimisations; run without it.
			zapLog.Warn("redis unavailable, continuing without rate limiting and dedup", zap.Error(err))
		} else {
			defer rc.Close()
			limiter = api.NewRedisLimiter(rc.Client)
			deduper = webhook.NewRedisDeduper(rc.Client, config.GetDuration(cfg.ESign.DedupTTL), log)
			readiness["redis"] = rc
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Notifications ---
	var (
		mailer notify.Mailer
		sms    notify.SMSSender
	)
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		mailer = sesClient
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}
		sms = snsClient
	}
	notifier := notify.New(notify.Config{
		EmailEnabled:  cfg.Notifications.Email.Enabled,
		SMSEnabled:    cfg.Notifications.SMS.Enabled,
		FromEmail:     cfg.Notifications.Email.FromEmail,
		PublicBaseURL: cfg.App.PublicBaseURL,
	}, mailer, sms, log)

	// --- E-signature ---
	var sender onboarding.DocumentSender
	if cfg.ESign.Enabled {
		client := esign.NewClient(cfg.ESign.BaseURL, cfg.ESign.APIKey, config.GetDuration(cfg.ESign.RequestTimeout))
		sender = esign.NewOrchestrator(client, esign.Config{
			TemplateID: cfg.ESign.TemplateID,
			Roles: esign.Roles{
				ND:        cfg.ESign.NDRole,
				HR:        cfg.ESign.HRRole,
				Candidate: cfg.ESign.CandidateRole,
			},
			Poll: retry.Fixed(cfg.ESign.PollAttempts, config.GetDuration(cfg.ESign.PollInterval)),
		}, log)
	}

	// --- Lifecycle events ---
	publisher := events.NewMulti(log)
	if cfg.Events.Kafka.Enabled {
		kp := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Kafka.Brokers,
			Topic:        cfg.Events.Kafka.Topic,
			MaxRetries:   cfg.Events.Kafka.MaxRetries,
			RetryBackoff: cfg.Events.Kafka.RetryBackoff,
		}, log)
		defer kp.Close()
		publisher.Add("kafka", kp)
	}
	if cfg.Events.Camunda.Enabled {
		var zeebe *camunda.Client
		err = connectWithRetry(ctx, "Zeebe client initialization", 10, zapLog, func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Events.Camunda.BrokerAddress)
			return err
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		publisher.Add("zeebe", events.NewZeebePublisher(zeebe, cfg.Events.Camunda.MessageName,
			config.GetDuration(cfg.Events.Camunda.MessageTTL)))
		readiness["zeebe"] = zeebeHealth{zeebe}
		zapLog.Info("Zeebe client connected successfully")
	}

	zapLog.Info("lifecycle event publishers configured", zap.Int("count", publisher.Len()))

	// --- Lifecycle service ---
	st := store.NewPostgres(pg.DB, log)
	svc := onboarding.NewService(onboarding.Dependencies{
		Store:     st,
		Issuer:    tokens.NewIssuer(tokens.WithTTL(cfg.TokenTTL())),
		Notifier:  notifier,
		ESign:     sender,
		Publisher: publisher,
		Logger:    log,
	}, onboarding.Options{
		HRSigner: hrSigner(cfg.ESign),
	})

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg := api.Config{
		Service:       svc,
		Batch:         batch.NewProcessor(svc, log),
		Users:         st,
		Webhook:       webhook.NewHandler(svc, deduper, cfg.ESign.WebhookKey, log),
		Limiter:       limiter,
		Observability: obs,
		Readiness:     readiness,
		Logger:        log,
	}
	routerCfg.CandidateRate.Limit = cfg.RateLimit.Candidate.Limit
	routerCfg.CandidateRate.Window = config.GetDuration(cfg.RateLimit.Candidate.Window)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down meter provider", zap.Error(err))
	}
	zapLog.Info("Onboarding API stopped")
}

func hrSigner(cfg config.ESignConfig) esign.Signer {
	first, last, _ := strings.Cut(strings.TrimSpace(cfg.HRSignerName), " ")
	return esign.Signer{Email: cfg.HRSignerEmail, FirstName: first, LastName: last}
}

type zeebeHealth struct {
	client *camunda.Client
}

func (z zeebeHealth) Ping(ctx context.Context) error {
	return z.client.HealthCheck(ctx)
}
