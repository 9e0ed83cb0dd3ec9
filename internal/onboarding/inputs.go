package onboarding

import (
	"strings"
	"time"

	apperrors "hire-onboarding/internal/common/errors"
	"hire-onboarding/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// CreateRequestInput is the ND-entered subset of a request.
type CreateRequestInput struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	State          string `json:"state,omitempty"`
	TourName       string `json:"tourName"`
	PositionTitle  string `json:"positionTitle"`
	HireDate       string `json:"hireDate"`
	EventRate      string `json:"eventRate"`
	DayRate        string `json:"dayRate"`
	WorkerCategory string `json:"workerCategory"`
	HireOrRehire   string `json:"hireOrRehire"`
}

// ImportRequestInput is one bulk-import row, owned by the named ND.
type ImportRequestInput struct {
	NDUserID int64 `json:"ndUserId"`
	CreateRequestInput
}

// CandidateInput is what the candidate submits through the token form.
type CandidateInput struct {
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	TaxID         string         `json:"taxId"`
	BirthDate     string         `json:"birthDate"`
	MaritalStatus string         `json:"maritalStatus"`
	Address       models.Address `json:"address"`
}

// HRInput holds the six HR-only fields.
type HRInput struct {
	ChangeEffectiveDate string `json:"changeEffectiveDate"`
	CompanyCode         string `json:"companyCode"`
	HomeDepartment      string `json:"homeDepartment"`
	SUICode             string `json:"suiCode"`
	I9Completed         *bool  `json:"i9Completed,omitempty"`
	EVerifyLocation     string `json:"eVerifyLocation"`
}

func (in CreateRequestInput) toModel() (models.CandidateFields, models.JobFields, error) {
	hire, err := parseDate("hireDate", in.HireDate)
	if err != nil {
		return models.CandidateFields{}, models.JobFields{}, err
	}
	eventRate, err := parseRate("eventRate", in.EventRate)
	if err != nil {
		return models.CandidateFields{}, models.JobFields{}, err
	}
	dayRate, err := parseRate("dayRate", in.DayRate)
	if err != nil {
		return models.CandidateFields{}, models.JobFields{}, err
	}
	c := models.CandidateFields{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     models.NormalizeEmail(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		State:     strings.TrimSpace(in.State),
	}
	j := models.JobFields{
		TourName:       strings.TrimSpace(in.TourName),
		PositionTitle:  strings.TrimSpace(in.PositionTitle),
		HireDate:       *hire,
		EventRate:      eventRate,
		DayRate:        dayRate,
		WorkerCategory: in.WorkerCategory,
		HireOrRehire:   in.HireOrRehire,
	}
	return c, j, nil
}

func (in CandidateInput) toModel() (models.CandidateFields, error) {
	birth, err := parseDate("birthDate", in.BirthDate)
	if err != nil {
		return models.CandidateFields{}, err
	}
	return models.CandidateFields{
		Email:         models.NormalizeEmail(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		TaxID:         strings.ReplaceAll(in.TaxID, "-", ""),
		BirthDate:     birth,
		MaritalStatus: in.MaritalStatus,
		Address:       in.Address,
	}, nil
}

func (in HRInput) toModel() (models.HRFields, error) {
	effective, err := parseDate("changeEffectiveDate", in.ChangeEffectiveDate)
	if err != nil {
		return models.HRFields{}, err
	}
	return models.HRFields{
		ChangeEffectiveDate: effective,
		CompanyCode:         in.CompanyCode,
		HomeDepartment:      in.HomeDepartment,
		SUICode:             in.SUICode,
		I9Completed:         in.I9Completed != nil && *in.I9Completed,
		EVerifyLocation:     in.EVerifyLocation,
	}, nil
}

func parseDate(field, value string) (*time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, apperrors.NewValidationError(field+" must be YYYY-MM-DD", map[string]string{field: "invalid date"})
	}
	return &t, nil
}

func parseRate(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		return decimal.Zero, apperrors.NewValidationError(field+" must be a non-negative amount", map[string]string{field: "invalid amount"})
	}
	return d.Round(2), nil
}
