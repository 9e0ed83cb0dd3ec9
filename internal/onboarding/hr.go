package onboarding

import (
	"context"
	"errors"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/validation"
	"hire-onboarding/internal/esign"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

// CompleteHRResult carries the document id, empty when the e-signature step failed.
type CompleteHRResult struct {
	Result
	DocumentID string `json:"documentId,omitempty"`
}

// CompleteHR stores the HR fields and moves the request to OFFER_LETTER_SENT. It accepts
// OFFER_LETTER_SENT as a starting point so a failed e-signature call can be retried.
// The document is created at most once: only when no id is stored and the caller wins
// the creation claim. Once a document was sent the HR fields are frozen and a repeated
// call only reports the stored document id.
func (s *Service) CompleteHR(ctx context.Context, actor models.Actor, id int64, in HRInput) (*CompleteHRResult, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard(lifecycle.ActionCompleteHR, actor, req); err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.SchemaHRCompletion, in); err != nil {
		return nil, err
	}
	fields, err := in.toModel()
	if err != nil {
		return nil, err
	}

	from := req.Status
	if err := s.store.CompleteHR(ctx, id, actor.UserID, fields, s.now()); err != nil {
		switch {
		case errors.Is(err, store.ErrDocumentLocked):
			return s.documentAlreadySent(ctx, id)
		case errors.Is(err, store.ErrStatusConflict):
			return nil, s.conflict(ctx, lifecycle.ActionCompleteHR, id)
		case errors.Is(err, store.ErrNotFound):
			return nil, apperrors.NewResourceNotFoundError("request", id)
		}
		return nil, apperrors.NewDatabaseError("complete_hr", err)
	}

	req, err = s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &CompleteHRResult{Result: Result{Request: req}}
	if from != req.Status {
		s.committed(ctx, lifecycle.ActionCompleteHR, actor, req, from, &res.Result)
	}

	nd, err := s.user(ctx, req.CreatedByNDID)
	if err != nil {
		s.sideEffect(&res.Result, "esign", id, err)
		return res, nil
	}
	if req.HasDocument() {
		res.DocumentID = *req.Signature.DocumentID
	} else if docID, sent := s.createDocument(ctx, res, req, nd, actor); sent {
		res.DocumentID = docID
		req.Signature.DocumentID = &docID
	}
	if from != req.Status {
		s.sideEffect(&res.Result, "email", id, s.notifier.NDNotified(ctx, req, nd))
	}
	return res, nil
}

// documentAlreadySent answers a repeated HR completion after the document went out.
func (s *Service) documentAlreadySent(ctx context.Context, id int64) (*CompleteHRResult, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusOfferLetterSent || !req.HasDocument() {
		return nil, s.conflict(ctx, lifecycle.ActionCompleteHR, id)
	}
	res := &CompleteHRResult{Result: Result{Request: req}, DocumentID: *req.Signature.DocumentID}
	res.warn("the e-signature document was already sent; HR fields were not changed")
	return res, nil
}

// createDocument claims, creates, sends and stores the document. It reports whether a
// new document was sent.
func (s *Service) createDocument(ctx context.Context, res *CompleteHRResult, req *models.OnboardingRequest, nd *models.User, actor models.Actor) (string, bool) {
	if s.esign == nil {
		res.warn("e-signature integration is disabled; no document was created")
		return "", false
	}

	claimed, err := s.store.ClaimDocumentCreation(ctx, req.ID, s.now())
	if err != nil {
		s.sideEffect(&res.Result, "esign", req.ID, err)
		return "", false
	}
	if !claimed {
		res.warn("an e-signature document is already being created for this request")
		return "", false
	}

	hr := s.hrSigner
	if hr.Email == "" {
		hr = esign.Signer{Email: actor.Email}
		if u, err := s.store.GetUser(ctx, actor.UserID); err == nil {
			hr = esign.Signer{Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
		}
	}
	ndSigner := esign.Signer{Email: nd.Email, FirstName: nd.FirstName, LastName: nd.LastName}

	docID, err := s.esign.CreateAndSend(ctx, req, ndSigner, hr)
	if err != nil {
		if docID != "" {
			s.logger.Warn("discarding unsent document", map[string]interface{}{"requestId": req.ID, "documentId": docID})
		}
		if relErr := s.store.ReleaseDocumentClaim(ctx, req.ID); relErr != nil {
			s.logger.Error("failed to release document claim", map[string]interface{}{"requestId": req.ID, "error": relErr})
		}
		s.sideEffect(&res.Result, "esign", req.ID, err)
		return "", false
	}

	if err := s.store.SetDocumentID(ctx, req.ID, docID, s.now()); err != nil {
		s.logger.Error("document sent but id not stored", map[string]interface{}{
			"requestId":  req.ID,
			"documentId": docID,
			"error":      err,
		})
		s.sideEffect(&res.Result, "esign", req.ID, err)
		return docID, true
	}
	return docID, true
}
