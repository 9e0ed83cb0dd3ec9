package models

import "time"

// Role is the access role of a staff user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleHR    Role = "HR"
	RoleND    Role = "ND"
)

type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"isActive"`
}

func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return u.FirstName + " " + u.LastName
}

// CandidateToken grants a candidate one window to submit their part of a request.
type CandidateToken struct {
	ID               int64      `json:"id"`
	RequestID        int64      `json:"requestId"`
	Token            string     `json:"-"`
	VerificationCode string     `json:"-"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	UsedAt           *time.Time `json:"usedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// Expired reports whether the token is past its expiry at now.
func (t *CandidateToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Used reports whether the token was redeemed.
func (t *CandidateToken) Used() bool {
	return t.UsedAt != nil
}
