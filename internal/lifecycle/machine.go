// Package lifecycle holds the authoritative status transition table for onboarding requests.
package lifecycle

import (
	"fmt"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/models"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionCreate             Action = "create"
	ActionImport             Action = "import"
	ActionApprove            Action = "approve"
	ActionSubmitCandidate    Action = "submit_candidate"
	ActionCompleteHR         Action = "complete_hr"
	ActionCompleteSignatures Action = "complete_signatures"
)

// Transition is one row of the table.
type Transition struct {
	Action Action
	// From lists accepted current statuses. Empty means the request does not exist yet.
	From []models.Status
	To   models.Status
	// Kind is the actor kind allowed to perform the action.
	Kind models.ActorKind
	// Roles allowed for user actors.
	Roles []models.Role
	// OwnerND allows an ND actor who owns the request even when RoleND is not in Roles.
	OwnerND bool
}

var table = map[Action]Transition{
	ActionCreate: {
		Action: ActionCreate,
		To:     models.StatusWaitingForCandidate,
		Kind:   models.ActorUser,
		Roles:  []models.Role{models.RoleND},
	},
	ActionImport: {
		Action: ActionImport,
		To:     models.StatusNDToApprove,
		Kind:   models.ActorUser,
		Roles:  []models.Role{models.RoleHR, models.RoleAdmin},
	},
	ActionApprove: {
		Action:  ActionApprove,
		From:    []models.Status{models.StatusNDToApprove},
		To:      models.StatusWaitingForCandidate,
		Kind:    models.ActorUser,
		Roles:   []models.Role{models.RoleAdmin, models.RoleHR},
		OwnerND: true,
	},
	ActionSubmitCandidate: {
		Action: ActionSubmitCandidate,
		From:   []models.Status{models.StatusWaitingForCandidate},
		To:     models.StatusWaitingForHR,
		Kind:   models.ActorCandidate,
	},
	ActionCompleteHR: {
		Action: ActionCompleteHR,
		// OFFER_LETTER_SENT is accepted so a failed e-signature call can be retried.
		From:  []models.Status{models.StatusWaitingForHR, models.StatusOfferLetterSent},
		To:    models.StatusOfferLetterSent,
		Kind:  models.ActorUser,
		Roles: []models.Role{models.RoleHR, models.RoleAdmin},
	},
	ActionCompleteSignatures: {
		Action: ActionCompleteSignatures,
		From:   []models.Status{models.StatusOfferLetterSent},
		To:     models.StatusADPCompleted,
		Kind:   models.ActorSystem,
	},
}

// Lookup returns the transition for action.
func Lookup(action Action) (Transition, bool) {
	t, ok := table[action]
	return t, ok
}

// Transitions returns a copy of the full table.
func Transitions() []Transition {
	out := make([]Transition, 0, len(table))
	for _, t := range table {
		out = append(out, t)
	}
	return out
}

// AcceptsFrom reports whether the transition may start from status.
func (t Transition) AcceptsFrom(status models.Status) bool {
	for _, s := range t.From {
		if s == status {
			return true
		}
	}
	return false
}

// FromValues returns the accepted statuses as strings, for conditional SQL updates.
func (t Transition) FromValues() []string {
	out := make([]string, len(t.From))
	for i, s := range t.From {
		out[i] = string(s)
	}
	return out
}

// Authorize checks the actor column of the table. req may be nil for creation actions.
func Authorize(action Action, actor models.Actor, req *models.OnboardingRequest) error {
	t, ok := table[action]
	if !ok {
		return apperrors.NewForbiddenError(string(action), "unknown action")
	}
	if actor.Kind != t.Kind {
		return apperrors.NewForbiddenError(string(action), fmt.Sprintf("actor %s cannot perform this action", actor))
	}
	if t.Kind != models.ActorUser {
		return nil
	}
	for _, r := range t.Roles {
		if actor.Role == r {
			return nil
		}
	}
	if t.OwnerND && actor.Role == models.RoleND && req != nil && req.CreatedByNDID == actor.UserID {
		return nil
	}
	return apperrors.NewForbiddenError(string(action), fmt.Sprintf("actor %s lacks role or ownership", actor))
}

// CheckStatus rejects with INVALID_STATE when current is not an accepted starting status.
func CheckStatus(action Action, requestID int64, current models.Status) error {
	t, ok := table[action]
	if !ok || !t.AcceptsFrom(current) {
		return apperrors.NewInvalidStateError(requestID, string(current), string(action))
	}
	return nil
}

// Guard runs the authorization check followed by the status check.
func Guard(action Action, actor models.Actor, req *models.OnboardingRequest) error {
	if err := Authorize(action, actor, req); err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	return CheckStatus(action, req.ID, req.Status)
}

// CanAdvance reports whether moving from -> to is a legal edge of the table.
func CanAdvance(from, to models.Status) bool {
	for _, t := range table {
		if t.To == to && t.AcceptsFrom(from) {
			return true
		}
	}
	return false
}

// CanManage reports whether actor may act on an existing request outside the
// transition table (resend invite): Admin, HR, or the owning ND.
func CanManage(actor models.Actor, req *models.OnboardingRequest) bool {
	if actor.Kind != models.ActorUser {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHR:
		return true
	case models.RoleND:
		return req != nil && req.CreatedByNDID == actor.UserID
	}
	return false
}

// CanDelete reports whether actor may delete requests.
func CanDelete(actor models.Actor) bool {
	return actor.Kind == models.ActorUser && (actor.Role == models.RoleAdmin || actor.Role == models.RoleHR)
}
