package onboarding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/esign"
	"hire-onboarding/internal/events"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/store/storetest"
	"hire-onboarding/internal/tokens"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

var (
	adminUser = models.User{ID: 1, Email: "admin@tours.example", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin, IsActive: true}
	hrUser    = models.User{ID: 2, Email: "hr@tours.example", FirstName: "Hana", LastName: "Reyes", Role: models.RoleHR, IsActive: true}
	ndUser    = models.User{ID: 3, Email: "nd@tours.example", FirstName: "Nico", LastName: "Dale", Role: models.RoleND, IsActive: true}
	otherND   = models.User{ID: 4, Email: "nd2@tours.example", FirstName: "Nora", LastName: "Diaz", Role: models.RoleND, IsActive: true}
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (n *recordingNotifier) record(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, name)
	return n.fail
}

func (n *recordingNotifier) CandidateInvite(context.Context, *models.OnboardingRequest, *models.User, *models.CandidateToken) error {
	return n.record("candidate_invite")
}

func (n *recordingNotifier) HRNotified(context.Context, *models.OnboardingRequest, []models.User) error {
	return n.record("hr_notified")
}

func (n *recordingNotifier) NDNotified(context.Context, *models.OnboardingRequest, *models.User) error {
	return n.record("nd_notified")
}

func (n *recordingNotifier) HRSignatureReady(_ context.Context, _ *models.OnboardingRequest, email string) error {
	return n.record("hr_signature_ready:" + email)
}

func (n *recordingNotifier) CandidateSignatureReady(context.Context, *models.OnboardingRequest) error {
	return n.record("candidate_signature_ready")
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type fakeSender struct {
	mu    sync.Mutex
	calls int
	docID string
	err   error
	hr    esign.Signer
}

func (f *fakeSender) CreateAndSend(_ context.Context, _ *models.OnboardingRequest, _, hr esign.Signer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.hr = hr
	return f.docID, f.err
}

func (f *fakeSender) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	svc      *Service
	mem      *storetest.Memory
	notifier *recordingNotifier
	sender   *fakeSender
	events   *events.Recorder
}

func newFixture(t *testing.T, opts ...func(*Dependencies, *Options)) *fixture {
	t.Helper()
	mem := storetest.NewMemory()
	for _, u := range []models.User{adminUser, hrUser, ndUser, otherND} {
		mem.AddUser(u)
	}
	f := &fixture{
		mem:      mem,
		notifier: &recordingNotifier{},
		sender:   &fakeSender{docID: "doc-1"},
		events:   &events.Recorder{},
	}
	clock := func() time.Time { return testNow }
	deps := Dependencies{
		Store:     mem,
		Issuer:    tokens.NewIssuer(tokens.WithClock(clock)),
		Notifier:  f.notifier,
		ESign:     f.sender,
		Publisher: f.events,
		Logger:    logger.NewTestLogger(t),
	}
	o := Options{Now: clock}
	for _, opt := range opts {
		opt(&deps, &o)
	}
	f.svc = NewService(deps, o)
	return f
}

func actor(u models.User) models.Actor {
	return models.UserActor(&u)
}

func validCreate(email string) CreateRequestInput {
	return CreateRequestInput{
		FirstName:      "Casey",
		LastName:       "Nguyen",
		Email:          email,
		Phone:          "555-123-4567",
		State:          "CA",
		TourName:       "Spring Arena Tour",
		PositionTitle:  "Rigger",
		HireDate:       "2026-04-01",
		EventRate:      "350.00",
		DayRate:        "175.50",
		WorkerCategory: "Seasonal",
		HireOrRehire:   "Hire",
	}
}

func validCandidate(email string) CandidateInput {
	return CandidateInput{
		Email:         email,
		Phone:         "555-987-6543",
		TaxID:         "123-45-6789",
		BirthDate:     "1994-07-12",
		MaritalStatus: "Single",
		Address: models.Address{
			Line1:   "12 Main St",
			City:    "Fresno",
			State:   "CA",
			ZipCode: "93701",
		},
	}
}

func validHR() HRInput {
	yes := true
	return HRInput{
		ChangeEffectiveDate: "2026-04-01",
		CompanyCode:         "TRX",
		HomeDepartment:      "Touring",
		SUICode:             "CA01",
		I9Completed:         &yes,
		EVerifyLocation:     "Los Angeles",
	}
}

// tokenFor returns the single unused token issued for requestID.
func tokenFor(t *testing.T, mem *storetest.Memory, requestID int64) string {
	t.Helper()
	for _, tok := range mem.TokensFor(requestID) {
		if !tok.Used() {
			return tok.Token
		}
	}
	t.Fatalf("no unused token for request %d", requestID)
	return ""
}

var errBoom = errors.New("boom")
