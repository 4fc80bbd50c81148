package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/oauth2"

	"github.com/ktharrington/Scheduler-Application/pkg/dbtx"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Store provides database operations for accounts.
type Store struct {
	db dbtx.DBTX
}

// NewStore creates an account Store backed by the given database handle.
func NewStore(db dbtx.DBTX) *Store {
	return &Store{db: db}
}

const accountColumns = `id, platform_user_id, handle, access_token, token_expiry, timezone, active, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var tokenExpiry *int64
	err := row.Scan(&a.ID, &a.PlatformUserID, &a.Handle, &a.AccessToken.AccessToken,
		&tokenExpiry, &a.Timezone, &a.Active, &a.CreatedAt)
	if err != nil {
		return Account{}, err
	}
	if tokenExpiry != nil {
		a.AccessToken.Expiry = time.Unix(*tokenExpiry, 0).UTC()
	}
	return a, nil
}

// Get returns a single account by ID.
func (s *Store) Get(ctx context.Context, id int64) (Account, error) {
	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, schederr.NotFound("account")
	}
	if err != nil {
		return Account{}, schederr.Transient("getting account", err)
	}
	return a, nil
}

// List returns every account, ordered by id.
func (s *Store) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, schederr.Transient("listing accounts", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, schederr.Transient("scanning account", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, schederr.Transient("iterating accounts", err)
	}
	return out, nil
}

// CreateParams holds parameters for onboarding a new account.
type CreateParams struct {
	PlatformUserID string
	Handle         string
	AccessToken    oauth2.Token
	Timezone       string
}

// Create inserts a new account.
func (s *Store) Create(ctx context.Context, p CreateParams) (Account, error) {
	var expiry *int64
	if !p.AccessToken.Expiry.IsZero() {
		e := p.AccessToken.Expiry.Unix()
		expiry = &e
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO accounts (platform_user_id, handle, access_token, token_expiry, timezone, active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING `+accountColumns,
		p.PlatformUserID, p.Handle, p.AccessToken.AccessToken, expiry, p.Timezone,
	)
	a, err := scanAccount(row)
	if err != nil {
		return Account{}, schederr.Transient("creating account", err)
	}
	return a, nil
}

// UpdateToken rotates the stored access token and/or timezone for an account.
func (s *Store) UpdateToken(ctx context.Context, id int64, token *string, timezone *string) (Account, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE accounts SET
			access_token = COALESCE($2, access_token),
			timezone = COALESCE($3, timezone)
		WHERE id = $1
		RETURNING `+accountColumns,
		id, token, timezone,
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, schederr.NotFound("account")
	}
	if err != nil {
		return Account{}, schederr.Transient("updating account token", err)
	}
	return a, nil
}

// SetActive flips the freeze/unfreeze flag (§6) and returns the updated row.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) (Account, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE accounts SET active = $2 WHERE id = $1
		RETURNING `+accountColumns,
		id, active,
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, schederr.NotFound("account")
	}
	if err != nil {
		return Account{}, schederr.Transient("updating account active flag", err)
	}
	return a, nil
}
