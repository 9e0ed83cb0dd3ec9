// Package store persists onboarding requests, candidate tokens and users.
//
// Every status change is a conditional write: the expected current status is part of
// the UPDATE predicate, so of two concurrent attempts from the same status exactly one
// affects a row. Writes that touch two rows run in a single transaction.
package store

import (
	"context"
	"errors"
	"time"

	"hire-onboarding/internal/models"
)

var (
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrStatusConflict     = errors.New("STATUS_CONFLICT")
	ErrTokenConsumed      = errors.New("TOKEN_CONSUMED")
	ErrDuplicateCandidate = errors.New("DUPLICATE_CANDIDATE")
	// ErrDocumentLocked means HR data can no longer change because a signing
	// document was already sent with it.
	ErrDocumentLocked = errors.New("DOCUMENT_LOCKED")
)

// DocumentClaimLease bounds how long a claim on e-signature document creation is held
// before another HR-completion attempt may take it over.
const DocumentClaimLease = 5 * time.Minute

// Store is the full persistence surface used by the lifecycle components.
type Store interface {
	RequestStore
	TokenStore
	UserStore
}

type RequestStore interface {
	// CreateRequest inserts r and, when tok is non-nil, tok in the same transaction.
	// Returns ErrDuplicateCandidate if the email belongs to a non-terminal request.
	CreateRequest(ctx context.Context, r *models.OnboardingRequest, tok *models.CandidateToken) error
	GetRequest(ctx context.Context, id int64) (*models.OnboardingRequest, error)
	GetRequestByDocumentID(ctx context.Context, documentID string) (*models.OnboardingRequest, error)
	// ApproveRequest moves ND_TO_APPROVE -> WAITING_FOR_CANDIDATE and inserts tok atomically.
	ApproveRequest(ctx context.Context, id int64, tok *models.CandidateToken, now time.Time) error
	// CompleteHR stores the HR fields and moves the request to OFFER_LETTER_SENT from
	// WAITING_FOR_HR or OFFER_LETTER_SENT. Once a document id is stored it returns
	// ErrDocumentLocked and leaves the row untouched.
	CompleteHR(ctx context.Context, id, hrUserID int64, fields models.HRFields, now time.Time) error
	// ClaimDocumentCreation takes a lease on creating the e-signature document. It
	// fails (false) when a document id is stored or another live lease exists.
	ClaimDocumentCreation(ctx context.Context, id int64, now time.Time) (bool, error)
	ReleaseDocumentClaim(ctx context.Context, id int64) error
	SetDocumentID(ctx context.Context, id int64, documentID string, now time.Time) error
	// MarkSignerCompleted sets the role's completion timestamp only if it is still null.
	MarkSignerCompleted(ctx context.Context, id int64, role models.SignerRole, at time.Time) (bool, error)
	// CompleteSignatures moves OFFER_LETTER_SENT -> ADP_COMPLETED. false when no row matched.
	CompleteSignatures(ctx context.Context, id int64, now time.Time) (bool, error)
	DeleteRequest(ctx context.Context, id int64) error
}

type TokenStore interface {
	InsertToken(ctx context.Context, tok *models.CandidateToken) error
	GetToken(ctx context.Context, token string) (*models.CandidateToken, error)
	// SubmitCandidate marks the token used and moves its request from
	// WAITING_FOR_CANDIDATE to WAITING_FOR_HR in one transaction. It returns
	// ErrTokenConsumed when the token is used, expired or unknown at write time and
	// ErrStatusConflict when the request already progressed.
	SubmitCandidate(ctx context.Context, token string, fields models.CandidateFields, now time.Time) (int64, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListActiveUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
}
