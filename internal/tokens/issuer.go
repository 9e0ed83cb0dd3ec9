// Package tokens mints and redeems candidate access tokens.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

const (
	// DefaultTTL is the fixed lifetime of a candidate link.
	DefaultTTL = 7 * 24 * time.Hour

	tokenBytes = 32
	codeDigits = 6
)

// Issuer creates single-use, time-limited candidate tokens.
type Issuer struct {
	ttl    time.Duration
	now    func() time.Time
	random func([]byte) (int, error)
}

type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func NewIssuer(opts ...Option) *Issuer {
	i := &Issuer{
		ttl:    DefaultTTL,
		now:    time.Now,
		random: rand.Read,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// New builds a token for requestID. Nothing is persisted; callers store the token in
// the same transaction as the status change that requires it.
func (i *Issuer) New(requestID int64) (*models.CandidateToken, error) {
	buf := make([]byte, tokenBytes)
	if _, err := i.random(buf); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	code, err := i.verificationCode()
	if err != nil {
		return nil, err
	}
	now := i.now().UTC()
	return &models.CandidateToken{
		RequestID:        requestID,
		Token:            hex.EncodeToString(buf),
		VerificationCode: code,
		ExpiresAt:        now.Add(i.ttl),
		CreatedAt:        now,
	}, nil
}

// Issue builds a token for an existing request and persists it. Earlier tokens for the
// request stay valid.
func (i *Issuer) Issue(ctx context.Context, ts store.TokenStore, requestID int64) (*models.CandidateToken, error) {
	tok, err := i.New(requestID)
	if err != nil {
		return nil, err
	}
	if err := ts.InsertToken(ctx, tok); err != nil {
		return nil, apperrors.NewDatabaseError("insert_token", err)
	}
	return tok, nil
}

func (i *Issuer) verificationCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := i.random(buf); err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	n := new(big.Int).SetBytes(buf)
	n.Mod(n, big.NewInt(1_000_000))
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// Redeemer validates tokens against the store.
type Redeemer struct {
	tokens   store.TokenStore
	requests store.RequestStore
	now      func() time.Time
}

func NewRedeemer(tokens store.TokenStore, requests store.RequestStore, now func() time.Time) *Redeemer {
	if now == nil {
		now = time.Now
	}
	return &Redeemer{tokens: tokens, requests: requests, now: now}
}

// Redeem looks up token and returns its request when the token may still be used.
// Unknown and expired tokens are TOKEN_NOT_FOUND, used tokens TOKEN_ALREADY_USED and
// a request past WAITING_FOR_CANDIDATE REQUEST_ALREADY_PROGRESSED.
func (r *Redeemer) Redeem(ctx context.Context, token string) (*models.CandidateToken, *models.OnboardingRequest, error) {
	if token == "" {
		return nil, nil, apperrors.NewTokenNotFoundError()
	}
	tok, err := r.tokens.GetToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperrors.NewTokenNotFoundError()
	}
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("get_token", err)
	}
	if tok.Used() {
		return nil, nil, apperrors.NewTokenAlreadyUsedError()
	}
	if tok.Expired(r.now()) {
		return nil, nil, apperrors.NewTokenNotFoundError()
	}

	req, err := r.requests.GetRequest(ctx, tok.RequestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperrors.NewTokenNotFoundError()
	}
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("get_request", err)
	}
	if req.Status != models.StatusWaitingForCandidate {
		return nil, nil, apperrors.NewAlreadyProgressedError(req.ID, string(req.Status))
	}
	return tok, req, nil
}
