// Package onboarding runs the request lifecycle: every operation validates input, checks
// the actor and current status, commits one conditional store write and then fires
// best-effort side effects whose failures are returned as warnings.
package onboarding

import (
	"context"
	"errors"
	"time"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/metrics"
	"hire-onboarding/internal/esign"
	"hire-onboarding/internal/events"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/notify"
	"hire-onboarding/internal/store"
	"hire-onboarding/internal/tokens"
)

// DocumentSender creates and sends the signing document.
type DocumentSender interface {
	CreateAndSend(ctx context.Context, req *models.OnboardingRequest, nd, hr esign.Signer) (string, error)
}

// Result is returned by operations that commit a transition.
type Result struct {
	Request  *models.OnboardingRequest `json:"request"`
	Warnings []string                  `json:"warnings,omitempty"`
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

type Dependencies struct {
	Store    store.Store
	Issuer   *tokens.Issuer
	Notifier notify.Dispatcher
	// ESign may be nil when the integration is disabled.
	ESign     DocumentSender
	Publisher events.Publisher
	Logger    logger.Logger
}

type Options struct {
	// HRSigner is the fixed HR signer on every document. When its email is empty the
	// HR user completing the request signs.
	HRSigner esign.Signer
	Now      func() time.Time
}

type Service struct {
	store     store.Store
	issuer    *tokens.Issuer
	redeemer  *tokens.Redeemer
	notifier  notify.Dispatcher
	esign     DocumentSender
	publisher events.Publisher
	hrSigner  esign.Signer
	now       func() time.Time
	logger    logger.Logger
}

func NewService(deps Dependencies, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	issuer := deps.Issuer
	if issuer == nil {
		issuer = tokens.NewIssuer(tokens.WithClock(now))
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		store:     deps.Store,
		issuer:    issuer,
		redeemer:  tokens.NewRedeemer(deps.Store, deps.Store, now),
		notifier:  notifier,
		esign:     deps.ESign,
		publisher: publisher,
		hrSigner:  opts.HRSigner,
		now:       func() time.Time { return now().UTC() },
		logger:    logger.ForComponent(deps.Logger, "onboarding"),
	}
}

// guard runs the lifecycle guard and counts rejections.
func (s *Service) guard(action lifecycle.Action, actor models.Actor, req *models.OnboardingRequest) error {
	if err := lifecycle.Guard(action, actor, req); err != nil {
		return s.reject(action, err)
	}
	return nil
}

func (s *Service) reject(action lifecycle.Action, err error) error {
	metrics.TransitionsRejected.WithLabelValues(string(action), string(apperrors.CodeOf(err))).Inc()
	fields := map[string]interface{}{
		"action":   action,
		"code":     apperrors.CodeOf(err),
		"category": apperrors.GetErrorCategory(apperrors.CodeOf(err)),
	}
	var se *apperrors.StandardError
	if errors.As(err, &se) {
		for k, v := range se.Metadata {
			fields[k] = v
		}
	}
	s.logger.Info("transition rejected", fields)
	return err
}

func (s *Service) loadRequest(ctx context.Context, id int64) (*models.OnboardingRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewResourceNotFoundError("onboarding request", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get_request", err)
	}
	return req, nil
}

// conflict turns a lost conditional write into INVALID_STATE against the status now stored.
func (s *Service) conflict(ctx context.Context, action lifecycle.Action, id int64) error {
	current := "unknown"
	if req, err := s.store.GetRequest(ctx, id); err == nil {
		current = string(req.Status)
	}
	return s.reject(action, apperrors.NewInvalidStateError(id, current, string(action)))
}

// committed records metrics and publishes the event for a committed transition.
func (s *Service) committed(ctx context.Context, action lifecycle.Action, actor models.Actor, req *models.OnboardingRequest, from models.Status, res *Result) {
	metrics.TransitionsTotal.WithLabelValues(string(action), string(req.Status)).Inc()
	s.logger.Info("transition committed", map[string]interface{}{
		"requestId": req.ID,
		"action":    action,
		"from":      from,
		"to":        req.Status,
		"actor":     actor.String(),
	})
	e := events.NewStatusChanged(req.ID, string(action), from, req.Status, actor, s.now())
	if err := s.publisher.Publish(ctx, e); err != nil {
		metrics.IntegrationFailures.WithLabelValues("events").Inc()
		s.logger.Warn("status event not published", map[string]interface{}{"requestId": req.ID, "error": err})
		if res != nil {
			res.warn("status event not published: " + err.Error())
		}
	}
}

// sideEffect logs and records a failed best-effort call as a warning.
func (s *Service) sideEffect(res *Result, integration string, requestID int64, err error) {
	if err == nil {
		return
	}
	metrics.IntegrationFailures.WithLabelValues(integration).Inc()
	warning := apperrors.NewIntegrationError(integration, err)
	s.logger.Warn("side effect failed", map[string]interface{}{
		"requestId":   requestID,
		"integration": integration,
		"error":       err,
	})
	if res != nil {
		res.warn(warning.Message + ": " + warning.Details)
	}
}

func (s *Service) user(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewResourceNotFoundError("user", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get_user", err)
	}
	return u, nil
}

func duplicateCandidate(email string) error {
	return apperrors.NewValidationError(
		"a non-completed onboarding request already exists for this email",
		map[string]string{"email": "already in use: " + email},
	)
}
