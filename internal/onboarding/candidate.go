package onboarding

import (
	"context"
	"errors"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/validation"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

// RedeemToken returns the read-only prefill for a valid token.
func (s *Service) RedeemToken(ctx context.Context, token string) (*models.Prefill, error) {
	_, req, err := s.redeemer.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}
	return models.PrefillFrom(req), nil
}

// SubmitCandidate stores the candidate's fields, marks the token used and moves the
// request to WAITING_FOR_HR in one write, then notifies every active HR user.
func (s *Service) SubmitCandidate(ctx context.Context, token string, in CandidateInput) (*Result, error) {
	actor := models.CandidateActor()
	_, req, err := s.redeemer.Redeem(ctx, token)
	if err != nil {
		return nil, s.reject(lifecycle.ActionSubmitCandidate, err)
	}
	if err := s.guard(lifecycle.ActionSubmitCandidate, actor, req); err != nil {
		return nil, err
	}
	if err := validation.Validate(validation.SchemaCandidateSubmission, in); err != nil {
		return nil, err
	}
	fields, err := in.toModel()
	if err != nil {
		return nil, err
	}

	from := req.Status
	id, err := s.store.SubmitCandidate(ctx, token, fields, s.now())
	if err != nil {
		return nil, s.submitError(ctx, token, id, err)
	}

	req, err = s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{Request: req}
	s.committed(ctx, lifecycle.ActionSubmitCandidate, actor, req, from, res)

	hrUsers, err := s.store.ListActiveUsersByRole(ctx, models.RoleHR)
	if err != nil {
		s.sideEffect(res, "email", req.ID, err)
		return res, nil
	}
	s.sideEffect(res, "email", req.ID, s.notifier.HRNotified(ctx, req, hrUsers))
	return res, nil
}

// submitError classifies a lost submission race the same way Redeem would.
func (s *Service) submitError(ctx context.Context, token string, requestID int64, err error) error {
	action := lifecycle.ActionSubmitCandidate
	switch {
	case errors.Is(err, store.ErrTokenConsumed):
		tok, getErr := s.store.GetToken(ctx, token)
		if getErr == nil && tok.Used() {
			return s.reject(action, apperrors.NewTokenAlreadyUsedError())
		}
		return s.reject(action, apperrors.NewTokenNotFoundError())
	case errors.Is(err, store.ErrStatusConflict):
		status := "unknown"
		if req, getErr := s.store.GetRequest(ctx, requestID); getErr == nil {
			status = string(req.Status)
		}
		return s.reject(action, apperrors.NewAlreadyProgressedError(requestID, status))
	case errors.Is(err, store.ErrDuplicateCandidate):
		return s.reject(action, duplicateCandidate(""))
	}
	return apperrors.NewDatabaseError("submit_candidate", err)
}
