package media

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ktharrington/Scheduler-Application/pkg/dbtx"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// Store provides database operations for media assets.
type Store struct {
	db dbtx.DBTX
}

// NewStore creates a media Store backed by the given database handle.
func NewStore(db dbtx.DBTX) *Store {
	return &Store{db: db}
}

const assetColumns = `id, account_id, stored_path, media_url, bytes, sha256, short_hash, created_at`

func scanAsset(row pgx.Row) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.AccountID, &a.StoredPath, &a.MediaURL, &a.Bytes,
		&a.SHA256, &a.ShortHash, &a.CreatedAt)
	return a, err
}

// Get returns a single media asset by ID, scoped to an account.
func (s *Store) Get(ctx context.Context, accountID, id int64) (Asset, error) {
	row := s.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM media_assets WHERE id = $1 AND account_id = $2`, id, accountID)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, schederr.NotFound("media asset")
	}
	if err != nil {
		return Asset{}, schederr.Transient("getting media asset", err)
	}
	return a, nil
}

// GetBySHA256 looks up an existing asset for this account by content hash,
// so a re-uploaded file is deduplicated rather than stored twice (§3).
func (s *Store) GetBySHA256(ctx context.Context, accountID int64, sha256 string) (Asset, bool, error) {
	row := s.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM media_assets WHERE account_id = $1 AND sha256 = $2`, accountID, sha256)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, schederr.Transient("looking up media asset by hash", err)
	}
	return a, true, nil
}

// CreateParams holds parameters for registering a stored media file.
type CreateParams struct {
	AccountID  int64
	StoredPath string
	MediaURL   string
	Bytes      int64
	SHA256     string
	ShortHash  string
}

// Create inserts a new media asset. If an asset with the same
// (account_id, sha256) already exists, the existing row is returned instead
// (idempotent upload, grounded on the same unique-constraint-then-fetch
// pattern used for idempotent post creation).
func (s *Store) Create(ctx context.Context, p CreateParams) (Asset, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO media_assets (account_id, stored_path, media_url, bytes, sha256, short_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, sha256) DO UPDATE SET account_id = media_assets.account_id
		RETURNING `+assetColumns,
		p.AccountID, p.StoredPath, p.MediaURL, p.Bytes, p.SHA256, p.ShortHash,
	)
	a, err := scanAsset(row)
	if err != nil {
		return Asset{}, schederr.Transient("creating media asset", err)
	}
	return a, nil
}
