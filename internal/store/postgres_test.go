package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db, logger.NewTestLogger(t)), mock
}

var fixedNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newRequest() *models.OnboardingRequest {
	return &models.OnboardingRequest{
		Status:        models.StatusWaitingForCandidate,
		CreatedByNDID: 3,
		Candidate: models.CandidateFields{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@x.com",
			Phone:     "5550101",
			State:     "TX",
		},
		Job: models.JobFields{
			TourName:       "Spring Tour",
			PositionTitle:  "Stagehand",
			HireDate:       fixedNow.AddDate(0, 0, 14),
			EventRate:      decimal.RequireFromString("150.00"),
			DayRate:        decimal.RequireFromString("300.00"),
			WorkerCategory: "Seasonal",
			HireOrRehire:   "Hire",
		},
		CreatedAt: fixedNow,
	}
}

func newToken() *models.CandidateToken {
	return &models.CandidateToken{
		Token:            "abc123",
		VerificationCode: "123456",
		ExpiresAt:        fixedNow.Add(7 * 24 * time.Hour),
		CreatedAt:        fixedNow,
	}
}

func requestRow(id int64, status models.Status, documentID interface{}) *sqlmock.Rows {
	cols := []string{
		"id", "status", "created_by_nd_id", "assigned_hr_id",
		"first_name", "last_name", "email", "phone", "state", "tax_id", "birth_date", "marital_status",
		"address_line1", "address_line2", "city", "address_state", "zip_code",
		"tour_name", "position_title", "hire_date", "event_rate", "day_rate", "worker_category", "hire_or_rehire",
		"change_effective_date", "company_code", "home_department", "sui_code", "i9_completed", "everify_location",
		"pandadoc_document_id", "nd_initials_completed_at", "hr_signature_completed_at", "candidate_signature_completed_at",
		"created_at", "updated_at", "candidate_submitted_at", "hr_completed_at",
	}
	return sqlmock.NewRows(cols).AddRow(
		id, string(status), int64(3), nil,
		"Jane", "Doe", "jane@x.com", "5550101", "TX", nil, nil, nil,
		nil, nil, nil, nil, nil,
		"Spring Tour", "Stagehand", fixedNow, "150.00", "300.00", "Seasonal", "Hire",
		nil, nil, nil, nil, false, nil,
		documentID, fixedNow, nil, nil,
		fixedNow, fixedNow, nil, nil,
	)
}

// ==========================
// CreateRequest
// ==========================

func TestCreateRequest_InsertsRequestAndTokenInOneTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("jane@x.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO onboarding_requests`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery(`INSERT INTO candidate_tokens`).
		WithArgs(int64(42), "abc123", "123456", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	req, tok := newRequest(), newToken()
	err := s.CreateRequest(context.Background(), req, tok)

	require.NoError(t, err)
	assert.Equal(t, int64(42), req.ID)
	assert.Equal(t, int64(42), tok.RequestID)
	assert.Equal(t, int64(7), tok.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequest_DuplicateLiveEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := s.CreateRequest(context.Background(), newRequest(), newToken())

	assert.ErrorIs(t, err, ErrDuplicateCandidate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequest_UniqueIndexViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO onboarding_requests`).
		WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := s.CreateRequest(context.Background(), newRequest(), nil)

	assert.ErrorIs(t, err, ErrDuplicateCandidate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Reads
// ==========================

func TestGetRequest_ScansNullableColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM onboarding_requests WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(requestRow(42, models.StatusOfferLetterSent, "doc-1"))

	req, err := s.GetRequest(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, models.StatusOfferLetterSent, req.Status)
	assert.Nil(t, req.AssignedHRID)
	assert.True(t, req.HasDocument())
	assert.Equal(t, "doc-1", *req.Signature.DocumentID)
	assert.NotNil(t, req.Signature.NDInitialsCompletedAt)
	assert.Nil(t, req.Signature.HRSignatureCompletedAt)
	assert.True(t, decimal.RequireFromString("150").Equal(req.Job.EventRate))
}

func TestGetRequest_RejectsUnknownStatus(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM onboarding_requests`).
		WithArgs(int64(42)).
		WillReturnRows(requestRow(42, models.Status("ARCHIVED"), nil))

	_, err := s.GetRequest(context.Background(), 42)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARCHIVED")
}

func TestGetRequest_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM onboarding_requests`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetRequest(context.Background(), 9)

	assert.ErrorIs(t, err, ErrNotFound)
}

// ==========================
// Conditional transitions
// ==========================

func TestApproveRequest_StatusConflictRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE onboarding_requests`).
		WithArgs(int64(42), "WAITING_FOR_CANDIDATE", fixedNow, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.ApproveRequest(context.Background(), 42, newToken(), fixedNow)

	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveRequest_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE onboarding_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO candidate_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectCommit()

	tok := newToken()
	err := s.ApproveRequest(context.Background(), 42, tok, fixedNow)

	require.NoError(t, err)
	assert.Equal(t, int64(42), tok.RequestID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitCandidate_ConsumedToken(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE candidate_tokens`).
		WithArgs("abc123", fixedNow).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.SubmitCandidate(context.Background(), "abc123", models.CandidateFields{Email: "jane@x.com"}, fixedNow)

	assert.ErrorIs(t, err, ErrTokenConsumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitCandidate_RequestAlreadyProgressedRollsBackTokenUse(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE candidate_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow(int64(42)))
	mock.ExpectExec(`UPDATE onboarding_requests`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	id, err := s.SubmitCandidate(context.Background(), "abc123", models.CandidateFields{Email: "jane@x.com"}, fixedNow)

	assert.Equal(t, int64(42), id)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitCandidate_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE candidate_tokens`).
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow(int64(42)))
	mock.ExpectExec(`UPDATE onboarding_requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := s.SubmitCandidate(context.Background(), "abc123", models.CandidateFields{Email: "jane@x.com"}, fixedNow)

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSignerCompleted_OnlyWhenNull(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET hr_signature_completed_at = \$2, updated_at = \$2\s+WHERE id = \$1 AND hr_signature_completed_at IS NULL`).
		WithArgs(int64(42), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`hr_signature_completed_at IS NULL`).
		WithArgs(int64(42), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.MarkSignerCompleted(context.Background(), 42, models.SignerHR, fixedNow)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.MarkSignerCompleted(context.Background(), 42, models.SignerHR, fixedNow)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSignerCompleted_UnknownRole(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.MarkSignerCompleted(context.Background(), 42, models.SignerRole("witness"), fixedNow)

	assert.Error(t, err)
}

func TestCompleteSignatures_OnlyFromOfferLetterSent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE onboarding_requests`).
		WithArgs(int64(42), "ADP_COMPLETED", fixedNow, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := s.CompleteSignatures(context.Background(), 42, fixedNow)

	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCompleteHR_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE onboarding_requests.*AND pandadoc_document_id IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CompleteHR(context.Background(), 42, 2, models.HRFields{CompanyCode: "TRX"}, fixedNow)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteHR_NoRowMatched(t *testing.T) {
	tests := []struct {
		name    string
		locked  *bool
		wantErr error
	}{
		{name: "document already sent", locked: boolRef(true), wantErr: ErrDocumentLocked},
		{name: "wrong status", locked: boolRef(false), wantErr: ErrStatusConflict},
		{name: "missing request", wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectExec(`UPDATE onboarding_requests`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			q := mock.ExpectQuery(`SELECT pandadoc_document_id IS NOT NULL`).WithArgs(int64(42))
			if tt.locked == nil {
				q.WillReturnError(sql.ErrNoRows)
			} else {
				q.WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(*tt.locked))
			}

			err := s.CompleteHR(context.Background(), 42, 9, models.HRFields{}, fixedNow)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func boolRef(b bool) *bool { return &b }

func TestClaimDocumentCreation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`SET esign_claimed_at = \$2`).
		WithArgs(int64(42), fixedNow, fixedNow.Add(-DocumentClaimLease)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.ClaimDocumentCreation(context.Background(), 42, fixedNow)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteRequest_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM onboarding_requests`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteRequest(context.Background(), 42)

	assert.True(t, errors.Is(err, ErrNotFound))
}

// ==========================
// Users
// ==========================

func TestListActiveUsersByRole(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM users WHERE role = \$1 AND is_active = TRUE`).
		WithArgs("HR").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "role", "is_active"}).
			AddRow(int64(2), "hr1@x.com", "Hana", "Reyes", "HR", true).
			AddRow(int64(5), "hr2@x.com", "Omar", "Li", "HR", true))

	users, err := s.ListActiveUsersByRole(context.Background(), models.RoleHR)

	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "hr2@x.com", users[1].Email)
}
