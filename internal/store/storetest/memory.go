// Package storetest provides an in-memory store.Store with the same conditional-write
// semantics as the Postgres implementation, for service and concurrency tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store"
)

type Memory struct {
	mu       sync.Mutex
	nextID   int64
	requests map[int64]*models.OnboardingRequest
	claims   map[int64]time.Time
	tokens   map[string]*models.CandidateToken
	users    map[int64]*models.User
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[int64]*models.OnboardingRequest),
		claims:   make(map[int64]time.Time),
		tokens:   make(map[string]*models.CandidateToken),
		users:    make(map[int64]*models.User),
	}
}

// AddUser seeds a user.
func (m *Memory) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

// Put seeds a request as-is, assigning an id when zero.
func (m *Memory) Put(r models.OnboardingRequest) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextID++
		r.ID = m.nextID
	} else if r.ID > m.nextID {
		m.nextID = r.ID
	}
	m.requests[r.ID] = cloneRequest(&r)
	return r.ID
}

// TokensFor returns copies of every token issued for requestID.
func (m *Memory) TokensFor(requestID int64) []models.CandidateToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CandidateToken
	for _, t := range m.tokens {
		if t.RequestID == requestID {
			out = append(out, cloneToken(t))
		}
	}
	return out
}

func (m *Memory) CreateRequest(_ context.Context, r *models.OnboardingRequest, tok *models.CandidateToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := models.NormalizeEmail(r.Candidate.Email)
	for _, existing := range m.requests {
		if !existing.Status.IsTerminal() && models.NormalizeEmail(existing.Candidate.Email) == email {
			return fmt.Errorf("%w: %s", store.ErrDuplicateCandidate, r.Candidate.Email)
		}
	}
	if tok != nil {
		if _, ok := m.tokens[tok.Token]; ok {
			return fmt.Errorf("insert token: duplicate token")
		}
	}

	m.nextID++
	r.ID = m.nextID
	r.UpdatedAt = r.CreatedAt
	m.requests[r.ID] = cloneRequest(r)

	if tok != nil {
		tok.RequestID = r.ID
		m.insertTokenLocked(tok)
	}
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id int64) (*models.OnboardingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("get request %d: %w", id, store.ErrNotFound)
	}
	return cloneRequest(r), nil
}

func (m *Memory) GetRequestByDocumentID(_ context.Context, documentID string) (*models.OnboardingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.Signature.DocumentID != nil && *r.Signature.DocumentID == documentID {
			return cloneRequest(r), nil
		}
	}
	return nil, fmt.Errorf("get request by document %s: %w", documentID, store.ErrNotFound)
}

func (m *Memory) ApproveRequest(_ context.Context, id int64, tok *models.CandidateToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.transitionLocked(lifecycle.ActionApprove, id)
	if err != nil {
		return err
	}
	r.Status = models.StatusWaitingForCandidate
	r.UpdatedAt = now
	tok.RequestID = id
	m.insertTokenLocked(tok)
	return nil
}

func (m *Memory) CompleteHR(_ context.Context, id, hrUserID int64, f models.HRFields, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.transitionLocked(lifecycle.ActionCompleteHR, id)
	if err != nil {
		return err
	}
	if r.HasDocument() {
		return fmt.Errorf("request %d: %w", id, store.ErrDocumentLocked)
	}
	r.HR = f
	hr := hrUserID
	r.AssignedHRID = &hr
	r.Status = models.StatusOfferLetterSent
	if r.HRCompletedAt == nil {
		r.HRCompletedAt = timeRef(now)
	}
	r.UpdatedAt = now
	return nil
}

func (m *Memory) ClaimDocumentCreation(_ context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.HasDocument() {
		return false, nil
	}
	if at, held := m.claims[id]; held && !at.Before(now.Add(-store.DocumentClaimLease)) {
		return false, nil
	}
	m.claims[id] = now
	return true, nil
}

func (m *Memory) ReleaseDocumentClaim(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, id)
	return nil
}

func (m *Memory) SetDocumentID(_ context.Context, id int64, documentID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.HasDocument() {
		return fmt.Errorf("request %d: %w", id, store.ErrStatusConflict)
	}
	doc := documentID
	r.Signature.DocumentID = &doc
	r.UpdatedAt = now
	delete(m.claims, id)
	return nil
}

func (m *Memory) MarkSignerCompleted(_ context.Context, id int64, role models.SignerRole, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return false, nil
	}
	var field **time.Time
	switch role {
	case models.SignerND:
		field = &r.Signature.NDInitialsCompletedAt
	case models.SignerHR:
		field = &r.Signature.HRSignatureCompletedAt
	case models.SignerCandidate:
		field = &r.Signature.CandidateSignatureCompletedAt
	default:
		return false, fmt.Errorf("unknown signer role %q", role)
	}
	if *field != nil {
		return false, nil
	}
	*field = timeRef(at)
	r.UpdatedAt = at
	return true, nil
}

func (m *Memory) CompleteSignatures(_ context.Context, id int64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != models.StatusOfferLetterSent {
		return false, nil
	}
	r.Status = models.StatusADPCompleted
	r.UpdatedAt = now
	return true, nil
}

func (m *Memory) DeleteRequest(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return fmt.Errorf("delete request %d: %w", id, store.ErrNotFound)
	}
	delete(m.requests, id)
	delete(m.claims, id)
	for k, t := range m.tokens {
		if t.RequestID == id {
			delete(m.tokens, k)
		}
	}
	return nil
}

func (m *Memory) InsertToken(_ context.Context, tok *models.CandidateToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[tok.RequestID]; !ok {
		return fmt.Errorf("insert token for request %d: %w", tok.RequestID, store.ErrNotFound)
	}
	m.insertTokenLocked(tok)
	return nil
}

func (m *Memory) GetToken(_ context.Context, token string) (*models.CandidateToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := cloneToken(t)
	return &c, nil
}

func (m *Memory) SubmitCandidate(_ context.Context, token string, c models.CandidateFields, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if !ok || t.Used() || t.Expired(now) {
		return 0, store.ErrTokenConsumed
	}
	r, err := m.transitionLocked(lifecycle.ActionSubmitCandidate, t.RequestID)
	if err != nil {
		return t.RequestID, err
	}

	email := models.NormalizeEmail(c.Email)
	for id, other := range m.requests {
		if id != r.ID && !other.Status.IsTerminal() && models.NormalizeEmail(other.Candidate.Email) == email {
			return r.ID, fmt.Errorf("%w: %s", store.ErrDuplicateCandidate, c.Email)
		}
	}

	t.UsedAt = timeRef(now)
	c.FirstName = r.Candidate.FirstName
	c.LastName = r.Candidate.LastName
	if c.State == "" {
		c.State = r.Candidate.State
	}
	r.Candidate = c
	r.Status = models.StatusWaitingForHR
	r.CandidateSubmittedAt = timeRef(now)
	r.UpdatedAt = now
	return r.ID, nil
}

func (m *Memory) GetUser(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %d: %w", id, store.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (m *Memory) ListActiveUsersByRole(_ context.Context, role models.Role) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for id := int64(1); id <= m.maxUserIDLocked(); id++ {
		if u, ok := m.users[id]; ok && u.Role == role && u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *Memory) transitionLocked(action lifecycle.Action, id int64) (*models.OnboardingRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %d: %w", id, store.ErrNotFound)
	}
	t, _ := lifecycle.Lookup(action)
	if !t.AcceptsFrom(r.Status) {
		return nil, fmt.Errorf("request %d: %w", id, store.ErrStatusConflict)
	}
	return r, nil
}

func (m *Memory) insertTokenLocked(tok *models.CandidateToken) {
	m.nextID++
	tok.ID = m.nextID
	c := cloneToken(tok)
	m.tokens[tok.Token] = &c
}

func (m *Memory) maxUserIDLocked() int64 {
	var max int64
	for id := range m.users {
		if id > max {
			max = id
		}
	}
	return max
}

func cloneRequest(r *models.OnboardingRequest) *models.OnboardingRequest {
	c := *r
	c.AssignedHRID = int64Ref(r.AssignedHRID)
	c.Candidate.BirthDate = copyTime(r.Candidate.BirthDate)
	c.HR.ChangeEffectiveDate = copyTime(r.HR.ChangeEffectiveDate)
	if r.Signature.DocumentID != nil {
		doc := *r.Signature.DocumentID
		c.Signature.DocumentID = &doc
	}
	c.Signature.NDInitialsCompletedAt = copyTime(r.Signature.NDInitialsCompletedAt)
	c.Signature.HRSignatureCompletedAt = copyTime(r.Signature.HRSignatureCompletedAt)
	c.Signature.CandidateSignatureCompletedAt = copyTime(r.Signature.CandidateSignatureCompletedAt)
	c.CandidateSubmittedAt = copyTime(r.CandidateSubmittedAt)
	c.HRCompletedAt = copyTime(r.HRCompletedAt)
	return &c
}

func cloneToken(t *models.CandidateToken) models.CandidateToken {
	c := *t
	c.UsedAt = copyTime(t.UsedAt)
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func int64Ref(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func timeRef(t time.Time) *time.Time {
	return &t
}
