package onboarding

import (
	"context"
	"errors"
	"fmt"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

// ErrUnknownDocument is returned when no request carries the document id.
var ErrUnknownDocument = errors.New("UNKNOWN_DOCUMENT")

// SignerOutcome describes what a recipient-completed event did.
type SignerOutcome struct {
	RequestID int64
	Role      models.SignerRole
	Changed   bool
}

// RequestForDocument resolves the request joined to a provider document.
func (s *Service) RequestForDocument(ctx context.Context, documentID string) (*models.OnboardingRequest, error) {
	if documentID == "" {
		return nil, ErrUnknownDocument
	}
	req, err := s.store.GetRequestByDocumentID(ctx, documentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, documentID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get_request_by_document", err)
	}
	return req, nil
}

// signerEmails returns the ND, HR and candidate emails in matching priority order.
func (s *Service) signerEmails(ctx context.Context, req *models.OnboardingRequest) map[models.SignerRole]string {
	out := map[models.SignerRole]string{
		models.SignerCandidate: models.NormalizeEmail(req.Candidate.Email),
	}
	if nd, err := s.store.GetUser(ctx, req.CreatedByNDID); err == nil {
		out[models.SignerND] = models.NormalizeEmail(nd.Email)
	}
	hrEmail := s.hrSigner.Email
	if hrEmail == "" && req.AssignedHRID != nil {
		if hr, err := s.store.GetUser(ctx, *req.AssignedHRID); err == nil {
			hrEmail = hr.Email
		}
	}
	if hrEmail != "" {
		out[models.SignerHR] = models.NormalizeEmail(hrEmail)
	}
	return out
}

// resolveSigner maps an email to a role. Roles are tried in signing order. When the
// email belongs to several roles, the first role still missing its timestamp wins.
func (s *Service) resolveSigner(ctx context.Context, req *models.OnboardingRequest, email string) (models.SignerRole, bool) {
	emails := s.signerEmails(ctx, req)
	email = models.NormalizeEmail(email)

	var matches []models.SignerRole
	for _, role := range models.SignerOrder {
		if e, ok := emails[role]; ok && e != "" && e == email {
			matches = append(matches, role)
		}
	}
	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0], true
	}

	s.logger.Warn("signer email matches several roles", map[string]interface{}{
		"requestId": req.ID,
		"roles":     matches,
	})
	for _, role := range matches {
		if req.Signature.CompletedAt(role) == nil {
			return role, true
		}
	}
	return matches[0], true
}

// RecordSignerCompleted sets the completion timestamp for the signer with email, only
// if it is unset, and notifies the next signer when the timestamp changed. An email
// that matches no signer is logged and ignored.
func (s *Service) RecordSignerCompleted(ctx context.Context, req *models.OnboardingRequest, email string) (*SignerOutcome, error) {
	out := &SignerOutcome{RequestID: req.ID}
	role, ok := s.resolveSigner(ctx, req, email)
	if !ok {
		s.logger.Info("recipient email does not match any signer", map[string]interface{}{
			"requestId": req.ID,
			"email":     email,
		})
		return out, nil
	}
	out.Role = role

	changed, err := s.store.MarkSignerCompleted(ctx, req.ID, role, s.now())
	if err != nil {
		return out, apperrors.NewDatabaseError("mark_signer_completed", err)
	}
	out.Changed = changed
	if !changed {
		s.logger.Debug("signer already recorded", map[string]interface{}{"requestId": req.ID, "role": role})
		return out, nil
	}
	s.logger.Info("signer completed", map[string]interface{}{"requestId": req.ID, "role": role})

	var notifyErr error
	switch role {
	case models.SignerND:
		hrEmail := s.signerEmails(ctx, req)[models.SignerHR]
		if hrEmail != "" {
			notifyErr = s.notifier.HRSignatureReady(ctx, req, hrEmail)
		}
	case models.SignerHR:
		notifyErr = s.notifier.CandidateSignatureReady(ctx, req)
	}
	s.sideEffect(nil, "email", req.ID, notifyErr)
	return out, nil
}

// CompleteDocument moves OFFER_LETTER_SENT to ADP_COMPLETED. Terminal requests are a
// no-op and any other status is logged and ignored; it reports whether a row changed.
func (s *Service) CompleteDocument(ctx context.Context, req *models.OnboardingRequest) (bool, error) {
	actor := models.SystemActor()
	if req.Status.IsTerminal() {
		return false, nil
	}
	if err := s.guard(lifecycle.ActionCompleteSignatures, actor, req); err != nil {
		s.logger.Warn("document completed outside OFFER_LETTER_SENT", map[string]interface{}{
			"requestId": req.ID,
			"status":    req.Status,
		})
		return false, nil
	}

	changed, err := s.store.CompleteSignatures(ctx, req.ID, s.now())
	if err != nil {
		return false, apperrors.NewDatabaseError("complete_signatures", err)
	}
	if !changed {
		return false, nil
	}

	from := req.Status
	updated, err := s.loadRequest(ctx, req.ID)
	if err != nil {
		return true, nil
	}
	s.committed(ctx, lifecycle.ActionCompleteSignatures, actor, updated, from, nil)
	return true, nil
}
