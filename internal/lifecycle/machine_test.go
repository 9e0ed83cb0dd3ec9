package lifecycle

import (
	"testing"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = models.Actor{Kind: models.ActorUser, UserID: 1, Role: models.RoleAdmin}
	hr       = models.Actor{Kind: models.ActorUser, UserID: 2, Role: models.RoleHR}
	ownerND  = models.Actor{Kind: models.ActorUser, UserID: 3, Role: models.RoleND}
	otherND  = models.Actor{Kind: models.ActorUser, UserID: 4, Role: models.RoleND}
	cand     = models.CandidateActor()
	system   = models.SystemActor()
	allRoles = []models.Actor{admin, hr, ownerND, otherND, cand, system}
)

func request(status models.Status) *models.OnboardingRequest {
	return &models.OnboardingRequest{ID: 10, Status: status, CreatedByNDID: ownerND.UserID}
}

func TestGuard_ActorColumn(t *testing.T) {
	tests := []struct {
		action  Action
		status  models.Status
		allowed []models.Actor
	}{
		{ActionApprove, models.StatusNDToApprove, []models.Actor{admin, hr, ownerND}},
		{ActionSubmitCandidate, models.StatusWaitingForCandidate, []models.Actor{cand}},
		{ActionCompleteHR, models.StatusWaitingForHR, []models.Actor{admin, hr}},
		{ActionCompleteSignatures, models.StatusOfferLetterSent, []models.Actor{system}},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			for _, actor := range allRoles {
				err := Guard(tt.action, actor, request(tt.status))
				if contains(tt.allowed, actor) {
					assert.NoError(t, err, "actor %s", actor)
				} else {
					require.Error(t, err, "actor %s", actor)
					assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
				}
			}
		})
	}
}

func TestGuard_CreationActions(t *testing.T) {
	assert.NoError(t, Guard(ActionCreate, ownerND, nil))
	assert.True(t, apperrors.HasCode(Guard(ActionCreate, hr, nil), apperrors.ErrCodeForbidden))

	assert.NoError(t, Guard(ActionImport, hr, nil))
	assert.NoError(t, Guard(ActionImport, admin, nil))
	assert.True(t, apperrors.HasCode(Guard(ActionImport, ownerND, nil), apperrors.ErrCodeForbidden))
}

func TestGuard_InvalidStateIsDistinctFromForbidden(t *testing.T) {
	err := Guard(ActionApprove, admin, request(models.StatusWaitingForHR))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidState))

	// authorization is checked before status
	err = Guard(ActionApprove, otherND, request(models.StatusWaitingForHR))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
}

func TestCompleteHR_IsRetryable(t *testing.T) {
	assert.NoError(t, Guard(ActionCompleteHR, hr, request(models.StatusWaitingForHR)))
	assert.NoError(t, Guard(ActionCompleteHR, hr, request(models.StatusOfferLetterSent)))
	assert.Error(t, Guard(ActionCompleteHR, hr, request(models.StatusWaitingForCandidate)))
	assert.Error(t, Guard(ActionCompleteHR, hr, request(models.StatusADPCompleted)))
}

func TestTable_ForwardOnly(t *testing.T) {
	for _, tr := range Transitions() {
		for _, from := range tr.From {
			assert.LessOrEqual(t, from.Rank(), tr.To.Rank(), "%s: %s -> %s", tr.Action, from, tr.To)
			// only the HR retry is allowed to stay in place
			if from == tr.To {
				assert.Equal(t, ActionCompleteHR, tr.Action)
			} else {
				assert.Equal(t, from.Rank()+1, tr.To.Rank(), "%s skips a status", tr.Action)
			}
		}
	}
}

func TestCanAdvance(t *testing.T) {
	all := []models.Status{
		models.StatusNDDraft, models.StatusNDToApprove, models.StatusWaitingForCandidate,
		models.StatusWaitingForHR, models.StatusOfferLetterSent, models.StatusADPCompleted,
		models.StatusCompleted,
	}
	legal := map[[2]models.Status]bool{
		{models.StatusNDToApprove, models.StatusWaitingForCandidate}:  true,
		{models.StatusWaitingForCandidate, models.StatusWaitingForHR}: true,
		{models.StatusWaitingForHR, models.StatusOfferLetterSent}:     true,
		{models.StatusOfferLetterSent, models.StatusOfferLetterSent}:  true,
		{models.StatusOfferLetterSent, models.StatusADPCompleted}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]models.Status{from, to}], CanAdvance(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanManageAndDelete(t *testing.T) {
	req := request(models.StatusWaitingForCandidate)
	assert.True(t, CanManage(admin, req))
	assert.True(t, CanManage(hr, req))
	assert.True(t, CanManage(ownerND, req))
	assert.False(t, CanManage(otherND, req))
	assert.False(t, CanManage(cand, req))

	assert.True(t, CanDelete(admin))
	assert.True(t, CanDelete(hr))
	assert.False(t, CanDelete(ownerND))
}

func contains(actors []models.Actor, a models.Actor) bool {
	for _, x := range actors {
		if x == a {
			return true
		}
	}
	return false
}
