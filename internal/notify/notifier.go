// Package notify sends the stage-specific onboarding emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hire-onboarding/internal/common/aws"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/metrics"
	"hire-onboarding/internal/models"

	"github.com/google/uuid"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, e aws.Email) (string, error)
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// Dispatcher is the notification surface used by the lifecycle.
type Dispatcher interface {
	CandidateInvite(ctx context.Context, req *models.OnboardingRequest, nd *models.User, tok *models.CandidateToken) error
	HRNotified(ctx context.Context, req *models.OnboardingRequest, hrUsers []models.User) error
	NDNotified(ctx context.Context, req *models.OnboardingRequest, nd *models.User) error
	HRSignatureReady(ctx context.Context, req *models.OnboardingRequest, hrEmail string) error
	CandidateSignatureReady(ctx context.Context, req *models.OnboardingRequest) error
}

type Config struct {
	EmailEnabled  bool
	SMSEnabled    bool
	FromEmail     string
	PublicBaseURL string
}

// Notifier renders templates and sends them through SES, plus an optional SNS text on
// candidate invites.
type Notifier struct {
	config Config
	mailer Mailer
	sms    SMSSender
	logger logger.Logger
}

func New(cfg Config, mailer Mailer, sms SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		config: cfg,
		mailer: mailer,
		sms:    sms,
		logger: logger.ForComponent(log, "notify"),
	}
}

// CandidateLink builds the public form URL for token.
func (n *Notifier) CandidateLink(token string) string {
	return strings.TrimRight(n.config.PublicBaseURL, "/") + "/candidate/" + token
}

func (n *Notifier) CandidateInvite(ctx context.Context, req *models.OnboardingRequest, nd *models.User, tok *models.CandidateToken) error {
	data := requestData(req)
	data["ndName"] = nd.FullName()
	data["link"] = n.CandidateLink(tok.Token)
	data["expiresAt"] = tok.ExpiresAt.Format("Jan 2, 2006")

	err := n.send(ctx, TemplateCandidateInvite, []string{req.Candidate.Email}, data)

	if n.config.SMSEnabled && n.sms != nil && req.Candidate.Phone != "" {
		msg := renderTemplate(templates[TemplateCandidateInvite].sms, data)
		if _, smsErr := n.sms.SendSMS(ctx, req.Candidate.Phone, msg); smsErr != nil {
			metrics.IntegrationFailures.WithLabelValues("sns").Inc()
			n.logger.Warn("candidate sms failed", map[string]interface{}{
				"requestId": req.ID,
				"error":     smsErr,
			})
		}
	}
	return err
}

// HRNotified emails every given HR user; failures for individual recipients are joined.
func (n *Notifier) HRNotified(ctx context.Context, req *models.OnboardingRequest, hrUsers []models.User) error {
	if len(hrUsers) == 0 {
		n.logger.Warn("no active HR users to notify", map[string]interface{}{"requestId": req.ID})
		return nil
	}
	data := requestData(req)
	var errs []error
	for _, u := range hrUsers {
		if err := n.send(ctx, TemplateHRNotified, []string{u.Email}, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) NDNotified(ctx context.Context, req *models.OnboardingRequest, nd *models.User) error {
	return n.send(ctx, TemplateNDNotified, []string{nd.Email}, requestData(req))
}

func (n *Notifier) HRSignatureReady(ctx context.Context, req *models.OnboardingRequest, hrEmail string) error {
	return n.send(ctx, TemplateHRSignatureReady, []string{hrEmail}, requestData(req))
}

func (n *Notifier) CandidateSignatureReady(ctx context.Context, req *models.OnboardingRequest) error {
	return n.send(ctx, TemplateCandidateSignatureReady, []string{req.Candidate.Email}, requestData(req))
}

func (n *Notifier) send(ctx context.Context, name Template, to []string, data map[string]interface{}) error {
	notificationID := uuid.New().String()
	if !n.config.EmailEnabled || n.mailer == nil {
		n.logger.Debug("email disabled", map[string]interface{}{
			"template":       name,
			"notificationId": notificationID,
		})
		return nil
	}
	tmpl, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	start := time.Now()
	messageID, err := n.mailer.Send(ctx, aws.Email{
		From:     n.config.FromEmail,
		To:       to,
		Subject:  renderTemplate(tmpl.subject, data),
		HTMLBody: renderTemplate(tmpl.body, data),
	})
	metrics.IntegrationDuration.WithLabelValues("ses").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IntegrationFailures.WithLabelValues("ses").Inc()
		return fmt.Errorf("send %s email: %w", name, err)
	}

	n.logger.Info("email sent", map[string]interface{}{
		"template":       name,
		"requestId":      data["requestId"],
		"notificationId": notificationID,
		"messageId":      messageID,
	})
	return nil
}

func requestData(req *models.OnboardingRequest) map[string]interface{} {
	return map[string]interface{}{
		"requestId":          req.ID,
		"candidateName":      req.Candidate.FullName(),
		"candidateFirstName": req.Candidate.FirstName,
		"tourName":           req.Job.TourName,
		"positionTitle":      req.Job.PositionTitle,
	}
}

// Nop discards every notification.
type Nop struct{}

func (Nop) CandidateInvite(context.Context, *models.OnboardingRequest, *models.User, *models.CandidateToken) error {
	return nil
}
func (Nop) HRNotified(context.Context, *models.OnboardingRequest, []models.User) error { return nil }
func (Nop) NDNotified(context.Context, *models.OnboardingRequest, *models.User) error  { return nil }
func (Nop) HRSignatureReady(context.Context, *models.OnboardingRequest, string) error  { return nil }
func (Nop) CandidateSignatureReady(context.Context, *models.OnboardingRequest) error   { return nil }
