package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/restockr/restockr-api/internal/model"
)

const accountColumns = `id, email, full_name, phone_number, city, role, password_hash, is_active,
activation_token, activation_token_expiry, refresh_token_hash, last_login, deactivated_at,
created_at, updated_at`

// AccountRepo is the credential store backed by the `accounts` table.  The
// same SQL runs on MySQL and SQLite; every timestamp is supplied by the
// caller so that no dialect specific time function is needed.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// NewAccount carries the fields captured at signup.
type NewAccount struct {
	Email                 string
	FullName              string
	PhoneNumber           string
	City                  string
	Role                  model.Role
	ActivationToken       string
	ActivationTokenExpiry time.Time
}

// ProfileUpdate lists owner editable fields; nil means unchanged.
type ProfileUpdate struct {
	FullName    *string
	PhoneNumber *string
	City        *string
}

// Create inserts an inactive account and returns its ID.
func (r *AccountRepo) Create(ctx context.Context, a NewAccount, now time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts (email, full_name, phone_number, city, role, is_active,
			activation_token, activation_token_expiry, created_at, updated_at)
		 VALUES (?,?,?,?,?,0,?,?,?,?)`,
		normalizeEmail(a.Email), a.FullName, a.PhoneNumber, a.City, string(a.Role),
		a.ActivationToken, a.ActivationTokenExpiry.UTC(), now.UTC(), now.UTC())
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return 0, dup
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", normalizeEmail(email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
}

// GetByRefreshTokenHash fetches the account whose current refresh token
// hashes to hash.
func (r *AccountRepo) GetByRefreshTokenHash(ctx context.Context, hash string) (model.Account, error) {
	return r.getOne(ctx, "SELECT "+accountColumns+" FROM accounts WHERE refresh_token_hash=? LIMIT 1", hash)
}

// SetActivationToken replaces the pending activation token of an account
// that is still awaiting activation.  ErrConflict means the account is
// active or deactivated.
func (r *AccountRepo) SetActivationToken(ctx context.Context, id uint64, token string, expiry, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET activation_token=?, activation_token_expiry=?, updated_at=?
		 WHERE id=? AND is_active=0 AND activation_token IS NOT NULL AND deactivated_at IS NULL`,
		token, expiry.UTC(), now.UTC(), id)
	return expectOne(res, err)
}

// Activate sets the password hash, clears the activation token and marks the
// account active in one statement.  It only applies while token is still the
// pending activation token, so two concurrent activations cannot both win.
func (r *AccountRepo) Activate(ctx context.Context, id uint64, token, passwordHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET password_hash=?, is_active=1, activation_token=NULL,
			activation_token_expiry=NULL, updated_at=?
		 WHERE id=? AND is_active=0 AND activation_token=?`,
		passwordHash, now.UTC(), id, token)
	return expectOne(res, err)
}

// RecordLogin stores the freshly issued refresh token hash, overwriting any
// previous one, and stamps last_login.
func (r *AccountRepo) RecordLogin(ctx context.Context, id uint64, refreshHash string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=?, last_login=?, updated_at=? WHERE id=?",
		refreshHash, at.UTC(), at.UTC(), id)
	return expectOne(res, err)
}

// SwapRefreshToken replaces oldHash with newHash only if oldHash is still the
// stored value.  Of two callers presenting the same token exactly one
// succeeds; the other gets ErrConflict.
func (r *AccountRepo) SwapRefreshToken(ctx context.Context, id uint64, oldHash, newHash string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=?, updated_at=? WHERE id=? AND refresh_token_hash=?",
		newHash, now.UTC(), id, oldHash)
	return expectOne(res, err)
}

// ClearRefreshToken removes the stored refresh token.  It is idempotent.
func (r *AccountRepo) ClearRefreshToken(ctx context.Context, id uint64, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET refresh_token_hash=NULL, updated_at=? WHERE id=?",
		now.UTC(), id)
	return err
}

// Deactivate soft-deletes an active account and drops its refresh token.
func (r *AccountRepo) Deactivate(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE accounts SET is_active=0, refresh_token_hash=NULL, deactivated_at=?, updated_at=?
		 WHERE id=? AND is_active=1`,
		now.UTC(), now.UTC(), id)
	return expectOne(res, err)
}

// UpdateProfile applies the non-nil fields of p.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, p ProfileUpdate, now time.Time) error {
	sets := []string{}
	args := []any{}
	if p.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *p.FullName)
	}
	if p.PhoneNumber != nil {
		sets = append(sets, "phone_number=?")
		args = append(args, *p.PhoneNumber)
	}
	if p.City != nil {
		sets = append(sets, "city=?")
		args = append(args, *p.City)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, now.UTC(), id)
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 rows when values are unchanged; confirm existence.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns a page of accounts ordered by id together with the total count.
func (r *AccountRepo) List(ctx context.Context, limit, offset int) ([]model.Account, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *AccountRepo) getOne(ctx context.Context, query string, arg any) (model.Account, error) {
	a, err := scanAccount(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	return a, err
}

func scanAccount(s scanner) (model.Account, error) {
	var (
		a                                   model.Account
		role                                string
		pwd, actToken, refreshHash          sql.NullString
		actExpiry, lastLogin, deactivatedAt sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Email, &a.FullName, &a.PhoneNumber, &a.City, &role, &pwd, &a.IsActive,
		&actToken, &actExpiry, &refreshHash, &lastLogin, &deactivatedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	a.PasswordHash = nullString(pwd)
	a.ActivationToken = nullString(actToken)
	a.RefreshTokenHash = nullString(refreshHash)
	a.ActivationTokenExpiry = nullTime(actExpiry)
	a.LastLogin = nullTime(lastLogin)
	a.DeactivatedAt = nullTime(deactivatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
