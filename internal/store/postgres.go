package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/lifecycle"
	"hire-onboarding/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const requestColumns = `id, status, created_by_nd_id, assigned_hr_id,
	first_name, last_name, email, phone, state, tax_id, birth_date, marital_status,
	address_line1, address_line2, city, address_state, zip_code,
	tour_name, position_title, hire_date, event_rate, day_rate, worker_category, hire_or_rehire,
	change_effective_date, company_code, home_department, sui_code, i9_completed, everify_location,
	pandadoc_document_id, nd_initials_completed_at, hr_signature_completed_at, candidate_signature_completed_at,
	created_at, updated_at, candidate_submitted_at, hr_completed_at`

// signerColumns maps each signer role to its completion column.
var signerColumns = map[models.SignerRole]string{
	models.SignerND:        "nd_initials_completed_at",
	models.SignerHR:        "hr_signature_completed_at",
	models.SignerCandidate: "candidate_signature_completed_at",
}

// Postgres implements Store on database/sql with the lib/pq driver.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: logger.ForComponent(log, "store"),
	}
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.Warn("rollback failed", map[string]interface{}{"error": rbErr})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) CreateRequest(ctx context.Context, r *models.OnboardingRequest, tok *models.CandidateToken) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM onboarding_requests
				WHERE lower(email) = lower($1) AND status <> ALL($2)
			)`, r.Candidate.Email, pq.Array(terminalValues())).Scan(&exists)
		if err != nil {
			return fmt.Errorf("duplicate check failed: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateCandidate, r.Candidate.Email)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO onboarding_requests (
				status, created_by_nd_id, first_name, last_name, email, phone, state,
				tour_name, position_title, hire_date, event_rate, day_rate,
				worker_category, hire_or_rehire, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
			RETURNING id`,
			string(r.Status),
			r.CreatedByNDID,
			r.Candidate.FirstName,
			r.Candidate.LastName,
			r.Candidate.Email,
			nullString(r.Candidate.Phone),
			nullString(r.Candidate.State),
			r.Job.TourName,
			r.Job.PositionTitle,
			r.Job.HireDate,
			r.Job.EventRate,
			r.Job.DayRate,
			r.Job.WorkerCategory,
			r.Job.HireOrRehire,
			r.CreatedAt,
		).Scan(&r.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateCandidate, r.Candidate.Email)
			}
			return fmt.Errorf("insert request failed: %w", err)
		}
		r.UpdatedAt = r.CreatedAt

		if tok == nil {
			return nil
		}
		tok.RequestID = r.ID
		return insertToken(ctx, tx, tok)
	})
}

func (p *Postgres) GetRequest(ctx context.Context, id int64) (*models.OnboardingRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM onboarding_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	return r, nil
}

func (p *Postgres) GetRequestByDocumentID(ctx context.Context, documentID string) (*models.OnboardingRequest, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM onboarding_requests WHERE pandadoc_document_id = $1`, documentID)
	r, err := scanRequest(row)
	if err != nil {
		return nil, fmt.Errorf("get request by document %s: %w", documentID, err)
	}
	return r, nil
}

func (p *Postgres) ApproveRequest(ctx context.Context, id int64, tok *models.CandidateToken, now time.Time) error {
	t, _ := lifecycle.Lookup(lifecycle.ActionApprove)
	return p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE onboarding_requests
			SET status = $2, updated_at = $3
			WHERE id = $1 AND status = ANY($4)`,
			id, string(t.To), now, pq.Array(t.FromValues()))
		if err != nil {
			return fmt.Errorf("approve request %d: %w", id, err)
		}
		if err := expectOneRow(res, id); err != nil {
			return err
		}
		tok.RequestID = id
		return insertToken(ctx, tx, tok)
	})
}

func (p *Postgres) CompleteHR(ctx context.Context, id, hrUserID int64, f models.HRFields, now time.Time) error {
	t, _ := lifecycle.Lookup(lifecycle.ActionCompleteHR)
	res, err := p.db.ExecContext(ctx, `
		UPDATE onboarding_requests
		SET change_effective_date = $2, company_code = $3, home_department = $4,
			sui_code = $5, i9_completed = $6, everify_location = $7,
			assigned_hr_id = $8, status = $9,
			hr_completed_at = COALESCE(hr_completed_at, $10), updated_at = $10
		WHERE id = $1 AND status = ANY($11) AND pandadoc_document_id IS NULL`,
		id,
		nullTime(f.ChangeEffectiveDate),
		nullString(f.CompanyCode),
		nullString(f.HomeDepartment),
		nullString(f.SUICode),
		f.I9Completed,
		nullString(f.EVerifyLocation),
		hrUserID,
		string(t.To),
		now,
		pq.Array(t.FromValues()),
	)
	if err != nil {
		return fmt.Errorf("complete hr for request %d: %w", id, err)
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}

	var locked bool
	err = p.db.QueryRowContext(ctx,
		`SELECT pandadoc_document_id IS NOT NULL FROM onboarding_requests WHERE id = $1`, id).Scan(&locked)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("request %d: %w", id, ErrNotFound)
	case err != nil:
		return fmt.Errorf("complete hr for request %d: %w", id, err)
	case locked:
		return fmt.Errorf("request %d: %w", id, ErrDocumentLocked)
	}
	return fmt.Errorf("request %d: %w", id, ErrStatusConflict)
}

func (p *Postgres) ClaimDocumentCreation(ctx context.Context, id int64, now time.Time) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE onboarding_requests
		SET esign_claimed_at = $2
		WHERE id = $1 AND pandadoc_document_id IS NULL
			AND (esign_claimed_at IS NULL OR esign_claimed_at < $3)`,
		id, now, now.Add(-DocumentClaimLease))
	if err != nil {
		return false, fmt.Errorf("claim document creation for request %d: %w", id, err)
	}
	return affected(res)
}

func (p *Postgres) ReleaseDocumentClaim(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `UPDATE onboarding_requests SET esign_claimed_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("release document claim for request %d: %w", id, err)
	}
	return nil
}

func (p *Postgres) SetDocumentID(ctx context.Context, id int64, documentID string, now time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE onboarding_requests
		SET pandadoc_document_id = $2, esign_claimed_at = NULL, updated_at = $3
		WHERE id = $1 AND pandadoc_document_id IS NULL`,
		id, documentID, now)
	if err != nil {
		return fmt.Errorf("set document id for request %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (p *Postgres) MarkSignerCompleted(ctx context.Context, id int64, role models.SignerRole, at time.Time) (bool, error) {
	column, ok := signerColumns[role]
	if !ok {
		return false, fmt.Errorf("unknown signer role %q", role)
	}
	res, err := p.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE onboarding_requests
		SET %[1]s = $2, updated_at = $2
		WHERE id = $1 AND %[1]s IS NULL`, column),
		id, at)
	if err != nil {
		return false, fmt.Errorf("mark %s completed for request %d: %w", role, id, err)
	}
	return affected(res)
}

func (p *Postgres) CompleteSignatures(ctx context.Context, id int64, now time.Time) (bool, error) {
	t, _ := lifecycle.Lookup(lifecycle.ActionCompleteSignatures)
	res, err := p.db.ExecContext(ctx, `
		UPDATE onboarding_requests
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, string(t.To), now, pq.Array(t.FromValues()))
	if err != nil {
		return false, fmt.Errorf("complete signatures for request %d: %w", id, err)
	}
	return affected(res)
}

// DeleteRequest removes the request; candidate_tokens cascade via the foreign key.
func (p *Postgres) DeleteRequest(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM onboarding_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete request %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete request %d: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) InsertToken(ctx context.Context, tok *models.CandidateToken) error {
	return insertToken(ctx, p.db, tok)
}

func (p *Postgres) GetToken(ctx context.Context, token string) (*models.CandidateToken, error) {
	var (
		tok    models.CandidateToken
		usedAt sql.NullTime
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, request_id, token, verification_code, expires_at, used_at, created_at
		FROM candidate_tokens WHERE token = $1`, token).
		Scan(&tok.ID, &tok.RequestID, &tok.Token, &tok.VerificationCode, &tok.ExpiresAt, &usedAt, &tok.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	tok.UsedAt = timePtr(usedAt)
	return &tok, nil
}

func (p *Postgres) SubmitCandidate(ctx context.Context, token string, c models.CandidateFields, now time.Time) (int64, error) {
	t, _ := lifecycle.Lookup(lifecycle.ActionSubmitCandidate)
	var requestID int64
	err := p.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE candidate_tokens
			SET used_at = $2
			WHERE token = $1 AND used_at IS NULL AND expires_at > $2
			RETURNING request_id`, token, now).Scan(&requestID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenConsumed
		}
		if err != nil {
			return fmt.Errorf("consume token: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE onboarding_requests
			SET email = $2, phone = $3, tax_id = $4, birth_date = $5, marital_status = $6,
				address_line1 = $7, address_line2 = $8, city = $9, address_state = $10, zip_code = $11,
				status = $12, candidate_submitted_at = $13, updated_at = $13
			WHERE id = $1 AND status = ANY($14)`,
			requestID,
			c.Email,
			nullString(c.Phone),
			nullString(c.TaxID),
			nullTime(c.BirthDate),
			nullString(c.MaritalStatus),
			nullString(c.Address.Line1),
			nullString(c.Address.Line2),
			nullString(c.Address.City),
			nullString(c.Address.State),
			nullString(c.Address.ZipCode),
			string(t.To),
			now,
			pq.Array(t.FromValues()),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateCandidate, c.Email)
			}
			return fmt.Errorf("submit candidate for request %d: %w", requestID, err)
		}
		return expectOneRow(res, requestID)
	})
	if err != nil {
		return requestID, err
	}
	return requestID, nil
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, role, is_active
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (p *Postgres) ListActiveUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, email, first_name, last_name, role, is_active
		FROM users WHERE role = $1 AND is_active = TRUE
		ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list %s users: %w", role, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsActive); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s users: %w", role, err)
	}
	return users, nil
}

// ==========================
// helpers
// ==========================

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertToken(ctx context.Context, q execQuerier, tok *models.CandidateToken) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO candidate_tokens (request_id, token, verification_code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		tok.RequestID, tok.Token, tok.VerificationCode, tok.ExpiresAt, tok.CreatedAt,
	).Scan(&tok.ID)
	if err != nil {
		return fmt.Errorf("insert token for request %d: %w", tok.RequestID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*models.OnboardingRequest, error) {
	var (
		r                                                   models.OnboardingRequest
		status                                              string
		assignedHR                                          sql.NullInt64
		phone, state, taxID, marital                        sql.NullString
		line1, line2, city, addrState, zip                  sql.NullString
		companyCode, homeDept, suiCode, everify, documentID sql.NullString
		birthDate, effectiveDate                            sql.NullTime
		ndAt, hrAt, candAt, submittedAt, hrCompletedAt      sql.NullTime
	)
	err := row.Scan(
		&r.ID, &status, &r.CreatedByNDID, &assignedHR,
		&r.Candidate.FirstName, &r.Candidate.LastName, &r.Candidate.Email, &phone, &state, &taxID, &birthDate, &marital,
		&line1, &line2, &city, &addrState, &zip,
		&r.Job.TourName, &r.Job.PositionTitle, &r.Job.HireDate, &r.Job.EventRate, &r.Job.DayRate, &r.Job.WorkerCategory, &r.Job.HireOrRehire,
		&effectiveDate, &companyCode, &homeDept, &suiCode, &r.HR.I9Completed, &everify,
		&documentID, &ndAt, &hrAt, &candAt,
		&r.CreatedAt, &r.UpdatedAt, &submittedAt, &hrCompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}

	r.Status = models.Status(status)
	if !r.Status.Valid() {
		return nil, fmt.Errorf("request %d has unknown status %q", r.ID, status)
	}
	if assignedHR.Valid {
		id := assignedHR.Int64
		r.AssignedHRID = &id
	}
	r.Candidate.Phone = phone.String
	r.Candidate.State = state.String
	r.Candidate.TaxID = taxID.String
	r.Candidate.BirthDate = timePtr(birthDate)
	r.Candidate.MaritalStatus = marital.String
	r.Candidate.Address = models.Address{
		Line1: line1.String, Line2: line2.String, City: city.String, State: addrState.String, ZipCode: zip.String,
	}
	r.HR.ChangeEffectiveDate = timePtr(effectiveDate)
	r.HR.CompanyCode = companyCode.String
	r.HR.HomeDepartment = homeDept.String
	r.HR.SUICode = suiCode.String
	r.HR.EVerifyLocation = everify.String
	if documentID.Valid && documentID.String != "" {
		doc := documentID.String
		r.Signature.DocumentID = &doc
	}
	r.Signature.NDInitialsCompletedAt = timePtr(ndAt)
	r.Signature.HRSignatureCompletedAt = timePtr(hrAt)
	r.Signature.CandidateSignatureCompletedAt = timePtr(candAt)
	r.CandidateSubmittedAt = timePtr(submittedAt)
	r.HRCompletedAt = timePtr(hrCompletedAt)
	return &r, nil
}

func expectOneRow(res sql.Result, id int64) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("request %d: %w", id, ErrStatusConflict)
	}
	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func terminalValues() []string {
	out := make([]string, len(models.TerminalStatuses))
	for i, s := range models.TerminalStatuses {
		out[i] = string(s)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
