package esign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/retry"
	"hire-onboarding/internal/models"
)

// ErrDocumentFailed is returned when the provider reports document.error while the
// document is being prepared.
var ErrDocumentFailed = errors.New("DOCUMENT_FAILED")

// Signer is a person assigned to a fixed signing role.
type Signer struct {
	Email     string
	FirstName string
	LastName  string
}

// Roles are the template role names for the three signers.
type Roles struct {
	ND        string
	HR        string
	Candidate string
}

type Config struct {
	TemplateID string
	Roles      Roles
	Poll       retry.Policy
}

// Orchestrator builds the ND -> HR -> Candidate document and sends it once the
// provider has finished preparing it.
type Orchestrator struct {
	api    API
	config Config
	logger logger.Logger
}

func NewOrchestrator(api API, cfg Config, log logger.Logger) *Orchestrator {
	if cfg.Poll.Attempts == 0 {
		cfg.Poll = retry.Fixed(10, 2*time.Second)
	}
	return &Orchestrator{
		api:    api,
		config: cfg,
		logger: logger.ForComponent(log, "esign"),
	}
}

// BuildRecipients returns the three recipients in fixed signing order.
func (o *Orchestrator) BuildRecipients(req *models.OnboardingRequest, nd, hr Signer) []Recipient {
	return []Recipient{
		{Email: nd.Email, FirstName: nd.FirstName, LastName: nd.LastName, Role: o.config.Roles.ND, SigningOrder: 1},
		{Email: hr.Email, FirstName: hr.FirstName, LastName: hr.LastName, Role: o.config.Roles.HR, SigningOrder: 2},
		{
			Email:        req.Candidate.Email,
			FirstName:    req.Candidate.FirstName,
			LastName:     req.Candidate.LastName,
			Role:         o.config.Roles.Candidate,
			SigningOrder: 3,
		},
	}
}

// BuildTokens maps request fields onto template variables.
func BuildTokens(req *models.OnboardingRequest) []Token {
	date := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("01/02/2006")
	}
	hire := req.Job.HireDate
	return []Token{
		{Name: "Candidate.FirstName", Value: req.Candidate.FirstName},
		{Name: "Candidate.LastName", Value: req.Candidate.LastName},
		{Name: "Candidate.Email", Value: req.Candidate.Email},
		{Name: "Candidate.State", Value: req.Candidate.State},
		{Name: "Job.TourName", Value: req.Job.TourName},
		{Name: "Job.PositionTitle", Value: req.Job.PositionTitle},
		{Name: "Job.HireDate", Value: date(&hire)},
		{Name: "Job.EventRate", Value: req.Job.EventRate.StringFixed(2)},
		{Name: "Job.DayRate", Value: req.Job.DayRate.StringFixed(2)},
		{Name: "Job.WorkerCategory", Value: req.Job.WorkerCategory},
		{Name: "HR.ChangeEffectiveDate", Value: date(req.HR.ChangeEffectiveDate)},
		{Name: "HR.CompanyCode", Value: req.HR.CompanyCode},
		{Name: "HR.HomeDepartment", Value: req.HR.HomeDepartment},
	}
}

// CreateAndSend creates the document, waits for it to leave the uploaded state and
// sends it. The document id is returned whenever creation succeeded, even if sending
// failed, so the caller can keep the reference.
func (o *Orchestrator) CreateAndSend(ctx context.Context, req *models.OnboardingRequest, nd, hr Signer) (string, error) {
	doc, err := o.api.CreateDocument(ctx, &CreateDocumentRequest{
		Name:         fmt.Sprintf("Offer Letter - %s", req.Candidate.FullName()),
		TemplateUUID: o.config.TemplateID,
		Recipients:   o.BuildRecipients(req, nd, hr),
		Tokens:       BuildTokens(req),
		Metadata:     map[string]string{"onboarding_request_id": fmt.Sprintf("%d", req.ID)},
	})
	if err != nil {
		return "", err
	}
	o.logger.Info("document created", map[string]interface{}{
		"requestId":  req.ID,
		"documentId": doc.ID,
		"status":     doc.Status,
	})

	if err := o.waitReady(ctx, doc.ID); err != nil {
		return doc.ID, err
	}

	subject := fmt.Sprintf("Offer letter for %s", req.Candidate.FullName())
	if err := o.api.SendDocument(ctx, doc.ID, subject, "Please review and sign."); err != nil {
		return doc.ID, err
	}
	o.logger.Info("document sent", map[string]interface{}{"requestId": req.ID, "documentId": doc.ID})
	return doc.ID, nil
}

func (o *Orchestrator) waitReady(ctx context.Context, documentID string) error {
	return retry.Poll(ctx, o.config.Poll, func(ctx context.Context, attempt int) (bool, error) {
		doc, err := o.api.GetDocument(ctx, documentID)
		if err != nil {
			return false, err
		}
		switch doc.Status {
		case StatusDraft:
			return true, nil
		case StatusError:
			return false, retry.Permanent(fmt.Errorf("%w: document %s", ErrDocumentFailed, documentID))
		}
		o.logger.Debug("document not ready", map[string]interface{}{
			"documentId": documentID,
			"status":     doc.Status,
			"attempt":    attempt,
		})
		return false, nil
	})
}
