package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle status of an onboarding request.
type Status string

const (
	StatusNDDraft             Status = "ND_DRAFT"
	StatusNDToApprove         Status = "ND_TO_APPROVE"
	StatusWaitingForCandidate Status = "WAITING_FOR_CANDIDATE"
	StatusWaitingForHR        Status = "WAITING_FOR_HR"
	StatusOfferLetterSent     Status = "OFFER_LETTER_SENT"
	StatusADPCompleted        Status = "ADP_COMPLETED"
	// StatusCompleted is the legacy terminal marker, reported like ADP_COMPLETED.
	StatusCompleted Status = "COMPLETED"
)

// statusRank orders statuses along the forward-only lifecycle.
var statusRank = map[Status]int{
	StatusNDDraft:             0,
	StatusNDToApprove:         1,
	StatusWaitingForCandidate: 2,
	StatusWaitingForHR:        3,
	StatusOfferLetterSent:     4,
	StatusADPCompleted:        5,
	StatusCompleted:           5,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the lifecycle, -1 if unknown.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// IsTerminal reports whether s ends the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusADPCompleted || s == StatusCompleted
}

// ReportingStatus collapses the legacy marker into ADP_COMPLETED for end users.
func (s Status) ReportingStatus() Status {
	if s == StatusCompleted {
		return StatusADPCompleted
	}
	return s
}

// TerminalStatuses are excluded from the candidate email uniqueness check.
var TerminalStatuses = []Status{StatusADPCompleted, StatusCompleted}

// CandidateFields are collected in two waves: the ND enters name, email, phone and
// state at creation, the candidate completes the rest through the token form.
type CandidateFields struct {
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	State         string     `json:"state,omitempty"`
	TaxID         string     `json:"-"`
	BirthDate     *time.Time `json:"birthDate,omitempty"`
	MaritalStatus string     `json:"maritalStatus,omitempty"`
	Address       Address    `json:"address"`
}

// FullName joins first and last name.
func (c CandidateFields) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Address struct {
	Line1   string `json:"line1,omitempty"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// JobFields are entered by the ND at creation and read-only afterwards.
type JobFields struct {
	TourName       string          `json:"tourName"`
	PositionTitle  string          `json:"positionTitle"`
	HireDate       time.Time       `json:"hireDate"`
	EventRate      decimal.Decimal `json:"eventRate"`
	DayRate        decimal.Decimal `json:"dayRate"`
	WorkerCategory string          `json:"workerCategory"`
	HireOrRehire   string          `json:"hireOrRehire"`
}

// HRFields are entered only by HR at the HR-completion step.
type HRFields struct {
	ChangeEffectiveDate *time.Time `json:"changeEffectiveDate,omitempty"`
	CompanyCode         string     `json:"companyCode,omitempty"`
	HomeDepartment      string     `json:"homeDepartment,omitempty"`
	SUICode             string     `json:"suiCode,omitempty"`
	I9Completed         bool       `json:"i9Completed"`
	EVerifyLocation     string     `json:"eVerifyLocation,omitempty"`
}

// SignatureProgress tracks the three sequential e-signature steps.
type SignatureProgress struct {
	DocumentID                    *string    `json:"pandadocDocumentId,omitempty"`
	NDInitialsCompletedAt         *time.Time `json:"ndInitialsCompletedAt,omitempty"`
	HRSignatureCompletedAt        *time.Time `json:"hrSignatureCompletedAt,omitempty"`
	CandidateSignatureCompletedAt *time.Time `json:"candidateSignatureCompletedAt,omitempty"`
}

// OnboardingRequest is the central lifecycle entity.
type OnboardingRequest struct {
	ID            int64  `json:"id"`
	Status        Status `json:"status"`
	CreatedByNDID int64  `json:"createdByNdId"`
	AssignedHRID  *int64 `json:"assignedHrId,omitempty"`

	Candidate CandidateFields   `json:"candidate"`
	Job       JobFields         `json:"job"`
	HR        HRFields          `json:"hr"`
	Signature SignatureProgress `json:"signature"`

	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	CandidateSubmittedAt *time.Time `json:"candidateSubmittedAt,omitempty"`
	HRCompletedAt        *time.Time `json:"hrCompletedAt,omitempty"`
}

// MarshalJSON reports the legacy COMPLETED marker as ADP_COMPLETED.
func (r OnboardingRequest) MarshalJSON() ([]byte, error) {
	type plain OnboardingRequest
	out := plain(r)
	out.Status = r.Status.ReportingStatus()
	return json.Marshal(out)
}

// HasDocument reports whether an e-signature document was already created.
func (r *OnboardingRequest) HasDocument() bool {
	return r.Signature.DocumentID != nil && *r.Signature.DocumentID != ""
}

// SignerRole identifies one of the three fixed e-signature recipients.
type SignerRole string

const (
	SignerND        SignerRole = "nd"
	SignerHR        SignerRole = "hr"
	SignerCandidate SignerRole = "candidate"
)

// SignerOrder is the fixed sequential signing order.
var SignerOrder = []SignerRole{SignerND, SignerHR, SignerCandidate}

// CompletedAt returns the recorded completion time for role.
func (p SignatureProgress) CompletedAt(role SignerRole) *time.Time {
	switch role {
	case SignerND:
		return p.NDInitialsCompletedAt
	case SignerHR:
		return p.HRSignatureCompletedAt
	case SignerCandidate:
		return p.CandidateSignatureCompletedAt
	}
	return nil
}

// Prefill is the read-only subset of a request shown on the candidate form.
type Prefill struct {
	RequestID     int64  `json:"requestId"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	State         string `json:"state,omitempty"`
	TourName      string `json:"tourName"`
	PositionTitle string `json:"positionTitle"`
}

// PrefillFrom extracts the candidate-visible subset of r.
func PrefillFrom(r *OnboardingRequest) *Prefill {
	return &Prefill{
		RequestID:     r.ID,
		FirstName:     r.Candidate.FirstName,
		LastName:      r.Candidate.LastName,
		Email:         r.Candidate.Email,
		Phone:         r.Candidate.Phone,
		State:         r.Candidate.State,
		TourName:      r.Job.TourName,
		PositionTitle: r.Job.PositionTitle,
	}
}

// NormalizeEmail is the canonical form used for uniqueness and recipient matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
