package batch

import (
	"context"
	"testing"
	"time"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/onboarding"
	"hire-onboarding/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockApprover struct {
	mock.Mock
}

func (m *mockApprover) Approve(ctx context.Context, actor models.Actor, id int64) (*onboarding.Result, error) {
	args := m.Called(ctx, actor, id)
	res, _ := args.Get(0).(*onboarding.Result)
	return res, args.Error(1)
}

func TestApproveMany_MixedOwnership(t *testing.T) {
	mem := storetest.NewMemory()
	owner := models.User{ID: 10, Email: "nd@tours.example", Role: models.RoleND, IsActive: true}
	other := models.User{ID: 11, Email: "nd2@tours.example", Role: models.RoleND, IsActive: true}
	mem.AddUser(owner)
	mem.AddUser(other)

	a := mem.Put(models.OnboardingRequest{Status: models.StatusNDToApprove, CreatedByNDID: owner.ID, Candidate: models.CandidateFields{Email: "a@x.com"}})
	b := mem.Put(models.OnboardingRequest{Status: models.StatusNDToApprove, CreatedByNDID: other.ID, Candidate: models.CandidateFields{Email: "b@x.com"}})
	c := mem.Put(models.OnboardingRequest{Status: models.StatusNDToApprove, CreatedByNDID: owner.ID, Candidate: models.CandidateFields{Email: "c@x.com"}})

	svc := onboarding.NewService(onboarding.Dependencies{
		Store:  mem,
		Logger: logger.NewTestLogger(t),
	}, onboarding.Options{Now: func() time.Time { return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) }})
	p := NewProcessor(svc, logger.NewTestLogger(t))

	report := p.ApproveMany(context.Background(), []int64{a, b, c}, models.UserActor(&owner))

	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[0].Success)
	assert.Equal(t, models.StatusWaitingForCandidate, report.Results[0].Status)
	assert.False(t, report.Results[1].Success)
	assert.Equal(t, apperrors.ErrCodeForbidden, report.Results[1].Code)
	assert.True(t, report.Results[2].Success)

	stored, _ := mem.GetRequest(context.Background(), b)
	assert.Equal(t, models.StatusNDToApprove, stored.Status)
	assert.Len(t, mem.TokensFor(a), 1)
	assert.Empty(t, mem.TokensFor(b))
}

func TestApproveMany_ContinuesAfterErrors(t *testing.T) {
	m := &mockApprover{}
	actor := models.Actor{Kind: models.ActorUser, UserID: 1, Role: models.RoleAdmin}
	ok := &onboarding.Result{
		Request:  &models.OnboardingRequest{Status: models.StatusWaitingForCandidate},
		Warnings: []string{"email failed"},
	}
	m.On("Approve", mock.Anything, actor, int64(1)).Return(nil, apperrors.NewInvalidStateError(1, "WAITING_FOR_HR", "approve"))
	m.On("Approve", mock.Anything, actor, int64(2)).Return(nil, apperrors.NewResourceNotFoundError("onboarding request", 2))
	m.On("Approve", mock.Anything, actor, int64(3)).Return(ok, nil)

	report := NewProcessor(m, logger.NewNoOpLogger()).ApproveMany(context.Background(), []int64{1, 2, 3, 3}, actor)

	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 2, report.ErrorCount)
	require.Len(t, report.Results, 3, "duplicate ids are processed once")
	assert.Equal(t, apperrors.ErrCodeInvalidState, report.Results[0].Code)
	assert.Equal(t, apperrors.ErrCodeResourceNotFound, report.Results[1].Code)
	assert.Equal(t, []string{"email failed"}, report.Results[2].Warnings)
	m.AssertNumberOfCalls(t, "Approve", 3)
}

func TestApproveMany_CancelledContext(t *testing.T) {
	m := &mockApprover{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewProcessor(m, logger.NewNoOpLogger()).ApproveMany(ctx, []int64{1, 2}, models.SystemActor())

	assert.Equal(t, 2, report.ErrorCount)
	m.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveMany_Empty(t *testing.T) {
	report := NewProcessor(&mockApprover{}, logger.NewNoOpLogger()).ApproveMany(context.Background(), nil, models.SystemActor())

	assert.Zero(t, report.SuccessCount)
	assert.NotNil(t, report.Results)
}
