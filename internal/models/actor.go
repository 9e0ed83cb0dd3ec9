package models

import "fmt"

// ActorKind distinguishes staff users, token-authenticated candidates and the system itself.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorCandidate ActorKind = "candidate"
	ActorSystem    ActorKind = "system"
)

// Actor is the explicit identity threaded into every lifecycle call.
type Actor struct {
	Kind   ActorKind `json:"kind"`
	UserID int64     `json:"userId,omitempty"`
	Role   Role      `json:"role,omitempty"`
	Email  string    `json:"email,omitempty"`
}

// UserActor builds an actor for an authenticated staff user.
func UserActor(u *User) Actor {
	return Actor{Kind: ActorUser, UserID: u.ID, Role: u.Role, Email: u.Email}
}

// CandidateActor builds the actor used for token-authenticated submissions.
func CandidateActor() Actor {
	return Actor{Kind: ActorCandidate}
}

// SystemActor is used for provider-driven transitions such as webhooks.
func SystemActor() Actor {
	return Actor{Kind: ActorSystem}
}

func (a Actor) String() string {
	switch a.Kind {
	case ActorUser:
		return fmt.Sprintf("user:%d(%s)", a.UserID, a.Role)
	default:
		return string(a.Kind)
	}
}
