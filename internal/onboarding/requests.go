package onboarding

import (
	"context"
	"errors"
	"fmt"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/validation"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

// CreateRequest is the ND creating a request directly: it starts in
// WAITING_FOR_CANDIDATE with a token, and the candidate is invited.
func (s *Service) CreateRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (*Result, error) {
	if err := s.guard(lifecycle.ActionCreate, actor, nil); err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.SchemaCreateRequest, in); err != nil {
		return nil, err
	}
	candidate, job, err := in.toModel()
	if err != nil {
		return nil, err
	}

	t, _ := lifecycle.Lookup(lifecycle.ActionCreate)
	now := s.now()
	req := &models.OnboardingRequest{
		Status:        t.To,
		CreatedByNDID: actor.UserID,
		Candidate:     candidate,
		Job:           job,
		CreatedAt:     now,
	}
	tok, err := s.issuer.New(0)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRequest(ctx, req, tok); err != nil {
		if errors.Is(err, store.ErrDuplicateCandidate) {
			return nil, s.reject(lifecycle.ActionCreate, duplicateCandidate(candidate.Email))
		}
		return nil, apperrors.NewDatabaseError("create_request", err)
	}

	res := &Result{Request: req}
	s.committed(ctx, lifecycle.ActionCreate, actor, req, "", res)
	s.invite(ctx, res, req, tok)
	return res, nil
}

// ImportRequest stores a bulk-import row in ND_TO_APPROVE for the named ND to review.
func (s *Service) ImportRequest(ctx context.Context, actor models.Actor, in ImportRequestInput) (*Result, error) {
	if err := s.guard(lifecycle.ActionImport, actor, nil); err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.SchemaImportRequest, in); err != nil {
		return nil, err
	}
	nd, err := s.user(ctx, in.NDUserID)
	if err != nil {
		return nil, err
	}
	if nd.Role != models.RoleND || !nd.IsActive {
		return nil, apperrors.NewValidationError("ndUserId must reference an active ND",
			map[string]string{"ndUserId": fmt.Sprintf("user %d is not an active ND", nd.ID)})
	}
	candidate, job, err := in.toModel()
	if err != nil {
		return nil, err
	}

	t, _ := lifecycle.Lookup(lifecycle.ActionImport)
	req := &models.OnboardingRequest{
		Status:        t.To,
		CreatedByNDID: nd.ID,
		Candidate:     candidate,
		Job:           job,
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateRequest(ctx, req, nil); err != nil {
		if errors.Is(err, store.ErrDuplicateCandidate) {
			return nil, s.reject(lifecycle.ActionImport, duplicateCandidate(candidate.Email))
		}
		return nil, apperrors.NewDatabaseError("import_request", err)
	}

	res := &Result{Request: req}
	s.committed(ctx, lifecycle.ActionImport, actor, req, "", res)
	return res, nil
}

// Approve moves ND_TO_APPROVE to WAITING_FOR_CANDIDATE, minting a token in the same
// write, then invites the candidate.
func (s *Service) Approve(ctx context.Context, actor models.Actor, id int64) (*Result, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.guard(lifecycle.ActionApprove, actor, req); err != nil {
		return nil, err
	}

	tok, err := s.issuer.New(id)
	if err != nil {
		return nil, err
	}
	from := req.Status
	if err := s.store.ApproveRequest(ctx, id, tok, s.now()); err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, s.conflict(ctx, lifecycle.ActionApprove, id)
		}
		return nil, apperrors.NewDatabaseError("approve_request", err)
	}

	req, err = s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{Request: req}
	s.committed(ctx, lifecycle.ActionApprove, actor, req, from, res)
	s.invite(ctx, res, req, tok)
	return res, nil
}

// ResendInvite mints an additional token for a request still waiting on the candidate
// and emails it. Earlier tokens are not revoked.
func (s *Service) ResendInvite(ctx context.Context, actor models.Actor, id int64) (*Result, error) {
	req, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !lifecycle.CanManage(actor, req) {
		return nil, apperrors.NewForbiddenError("resend_invite", fmt.Sprintf("actor %s cannot manage request %d", actor, id))
	}
	if req.Status != models.StatusWaitingForCandidate {
		return nil, apperrors.NewInvalidStateError(id, string(req.Status), "resend_invite")
	}

	tok, err := s.issuer.Issue(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	res := &Result{Request: req}
	s.invite(ctx, res, req, tok)
	return res, nil
}

// DeleteRequest removes a request and its tokens. HR and Admin only.
func (s *Service) DeleteRequest(ctx context.Context, actor models.Actor, id int64) error {
	if !lifecycle.CanDelete(actor) {
		return apperrors.NewForbiddenError("delete_request", fmt.Sprintf("actor %s cannot delete requests", actor))
	}
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NewResourceNotFoundError("onboarding request", id)
		}
		return apperrors.NewDatabaseError("delete_request", err)
	}
	s.logger.Info("request deleted", map[string]interface{}{"requestId": id, "actor": actor.String()})
	return nil
}

func (s *Service) invite(ctx context.Context, res *Result, req *models.OnboardingRequest, tok *models.CandidateToken) {
	nd, err := s.user(ctx, req.CreatedByNDID)
	if err != nil {
		s.sideEffect(res, "email", req.ID, err)
		return
	}
	s.sideEffect(res, "email", req.ID, s.notifier.CandidateInvite(ctx, req, nd, tok))
}
