package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ktharrington/Scheduler-Application/pkg/dbtx"
	"github.com/ktharrington/Scheduler-Application/pkg/schederr"
)

// pooler is satisfied by *pgxpool.Pool: it can run queries directly and
// start transactions, which LeaseDue needs for its claim-then-update step.
type pooler interface {
	dbtx.DBTX
	dbtx.Begin
}

// Store provides database operations for posts.
type Store struct {
	db pooler
}

// NewStore creates a post Store backed by the given pool.
func NewStore(db pooler) *Store {
	return &Store{db: db}
}

const postColumns = `id, account_id, platform, post_type, media_url, caption, scheduled_at,
	client_request_id, asset_id, status, retry_count, error_code, publish_result,
	locked_at, created_at, updated_at`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.AccountID, &p.Platform, &p.PostType, &p.MediaURL, &p.Caption,
		&p.ScheduledAt, &p.ClientRequestID, &p.AssetID, &p.Status, &p.RetryCount,
		&p.ErrorCode, &p.PublishResult, &p.LockedAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()
	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post rows: %w", err)
	}
	return out, nil
}

// Get returns a single post by ID.
func (s *Store) Get(ctx context.Context, id int64) (Post, error) {
	row := s.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, schederr.NotFound("post")
	}
	if err != nil {
		return Post{}, schederr.Transient("getting post", err)
	}
	return p, nil
}

// Query returns posts for an account within [start, end), ordered by
// scheduled_at then id (§3, §6).
func (s *Store) Query(ctx context.Context, accountID int64, start, end time.Time) ([]Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE account_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at, id`,
		accountID, start, end,
	)
	if err != nil {
		return nil, schederr.Transient("querying posts", err)
	}
	return scanPosts(rows)
}

// NonTerminalOnDate returns the scheduled_at values of every post that is not
// failed or cancelled (posted ones included) for an account on the given
// local date (§3's spacing/cap window),
// excluding excludeID (used when moving/editing a post against its own day).
func (s *Store) NonTerminalOnDate(ctx context.Context, accountID int64, dayStart, dayEnd time.Time, excludeID *int64) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT scheduled_at FROM posts
		WHERE account_id = $1
		  AND scheduled_at >= $2 AND scheduled_at < $3
		  AND status NOT IN ('failed', 'cancelled')
		  AND ($4::bigint IS NULL OR id <> $4)`,
		accountID, dayStart, dayEnd, excludeID,
	)
	if err != nil {
		return nil, schederr.Transient("counting posts for date", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, schederr.Transient("scanning scheduled_at", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateParams holds parameters for creating a post.
type CreateParams struct {
	AccountID       int64
	Platform        string
	PostType        Type
	MediaURL        string
	Caption         string
	ScheduledAt     time.Time
	ClientRequestID *string
	AssetID         *int64
}

// CreateOutcome distinguishes a fresh insert from a replayed idempotent hit.
type CreateOutcome int

const (
	Created CreateOutcome = iota
	IdempotentHit
)

// Create inserts a new post. If ClientRequestID is set and already exists
// for this account, the existing row is returned with outcome IdempotentHit
// instead of erroring (§4.1, §8).
func (s *Store) Create(ctx context.Context, p CreateParams) (Post, CreateOutcome, error) {
	if p.ClientRequestID != nil {
		existing, found, err := s.getByClientRequestID(ctx, p.AccountID, *p.ClientRequestID)
		if err != nil {
			return Post{}, Created, err
		}
		if found {
			return existing, IdempotentHit, nil
		}
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO posts (account_id, platform, post_type, media_url, caption, scheduled_at,
			client_request_id, asset_id, status, retry_count, publish_result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', 0, '{}'::jsonb)
		RETURNING `+postColumns,
		p.AccountID, p.Platform, p.PostType, p.MediaURL, p.Caption, p.ScheduledAt,
		p.ClientRequestID, p.AssetID,
	)
	created, err := scanPost(row)
	if dbtx.IsUniqueViolation(err) {
		// Lost a race against a concurrent identical request; fetch the
		// winner rather than surfacing a spurious conflict (§8 idempotency).
		if p.ClientRequestID != nil {
			existing, found, ferr := s.getByClientRequestID(ctx, p.AccountID, *p.ClientRequestID)
			if ferr == nil && found {
				return existing, IdempotentHit, nil
			}
		}
		return Post{}, Created, schederr.Conflict("client_request_id_collision", "client_request_id already in use for this account")
	}
	if err != nil {
		return Post{}, Created, schederr.Transient("creating post", err)
	}
	return created, Created, nil
}

func (s *Store) getByClientRequestID(ctx context.Context, accountID int64, key string) (Post, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+postColumns+` FROM posts WHERE account_id = $1 AND client_request_id = $2`,
		accountID, key,
	)
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, false, nil
	}
	if err != nil {
		return Post{}, false, schederr.Transient("looking up post by client_request_id", err)
	}
	return p, true, nil
}

// EditParams holds the partial fields an edit may change. Nil fields are
// left unmodified.
type EditParams struct {
	MediaURL    *string
	Caption     *string
	ScheduledAt *time.Time
}

// Edit updates a scheduled post's editable fields. Only posts currently
// `scheduled` may be edited (§4.5); callers must enforce that before calling.
func (s *Store) Edit(ctx context.Context, id int64, p EditParams) (Post, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE posts SET
			media_url = COALESCE($2, media_url),
			caption = COALESCE($3, caption),
			scheduled_at = COALESCE($4, scheduled_at),
			updated_at = now()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+postColumns,
		id, p.MediaURL, p.Caption, p.ScheduledAt,
	)
	updated, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, schederr.Conflict("not_editable", "post is not in scheduled status")
	}
	if err != nil {
		return Post{}, schederr.Transient("editing post", err)
	}
	return updated, nil
}

// BulkDelete removes every post whose id is in ids, in one transaction,
// returning the count actually removed.
func (s *Store) BulkDelete(ctx context.Context, ids []int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, schederr.Transient("bulk deleting posts", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAfter removes posts for an account scheduled after t that are still
// scheduled or leased (§4.1, §6, §8).
func (s *Store) DeleteAfter(ctx context.Context, accountID int64, t time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM posts
		WHERE account_id = $1 AND scheduled_at > $2 AND status IN ('scheduled', 'leased')`,
		accountID, t,
	)
	if err != nil {
		return 0, schederr.Transient("deleting posts after cutoff", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOld removes every post for an account scheduled before now (§6's
// clear_old_posts), regardless of status.
func (s *Store) DeleteOld(ctx context.Context, accountID int64, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM posts WHERE account_id = $1 AND scheduled_at < $2`,
		accountID, now,
	)
	if err != nil {
		return 0, schederr.Transient("deleting old posts", err)
	}
	return tag.RowsAffected(), nil
}

// CAS applies a post status transition with a compare-and-set on (id,
// status), so a concurrent cancel or lease-expiry can never be clobbered by
// a stale worker (§4.6, §5, §9). expectedStatuses is the set of statuses the
// row must currently be in; otherwise nothing is updated and a Conflict
// error with code "stale_status" is returned.
func (s *Store) CAS(ctx context.Context, id int64, expectedStatuses []Status, p StatusUpdate) (Post, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE posts SET
			status = $2,
			retry_count = retry_count + $3,
			error_code = $4,
			publish_result = COALESCE($5, publish_result),
			scheduled_at = COALESCE($6, scheduled_at),
			locked_at = $7,
			updated_at = now()
		WHERE id = $1 AND status = ANY($8::text[])
		RETURNING `+postColumns,
		id, p.Status, boolToInt(p.IncrementRetry), p.ErrorCode, p.PublishResult,
		p.RescheduleTo, p.LockedAt, statusStrings(expectedStatuses),
	)
	updated, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, schederr.Conflict("stale_status", "post status changed concurrently")
	}
	if err != nil {
		return Post{}, schederr.Transient("updating post status", err)
	}
	return updated, nil
}

// StatusUpdate is the set of fields CAS may write alongside a status change.
type StatusUpdate struct {
	Status         Status
	IncrementRetry bool
	ErrorCode      *string
	PublishResult  json.RawMessage
	RescheduleTo   *time.Time
	LockedAt       *time.Time
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

// LeaseDue atomically claims up to limit due posts and marks them leased,
// returning their ids in scheduled_at order (§4.6). FOR UPDATE SKIP LOCKED
// guarantees at-most-once dispatch across any number of concurrent leasers.
func (s *Store) LeaseDue(ctx context.Context, limit int, grace time.Duration) ([]int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, schederr.Transient("beginning lease transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id FROM posts
		WHERE status = 'scheduled' AND scheduled_at <= now() + $1
		ORDER BY scheduled_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		grace, limit,
	)
	if err != nil {
		return nil, schederr.Transient("claiming due posts", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, schederr.Transient("scanning claimed post id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, schederr.Transient("iterating claimed posts", err)
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE posts SET status = 'leased', locked_at = now(), updated_at = now()
		WHERE id = ANY($1)`,
		ids,
	); err != nil {
		return nil, schederr.Transient("marking posts leased", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, schederr.Transient("committing lease", err)
	}
	return ids, nil
}

// ReclaimExpiredLeases resets posts stuck in leased/publishing with a lease
// older than ttl back to scheduled, incrementing retry_count (§4.6, §8's
// lease-expiry property). Returns the count reclaimed.
func (s *Store) ReclaimExpiredLeases(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE posts SET status = 'scheduled', retry_count = retry_count + 1,
			locked_at = NULL, updated_at = now()
		WHERE status IN ('leased', 'publishing') AND locked_at < now() - $1::interval`,
		ttl,
	)
	if err != nil {
		return 0, schederr.Transient("reclaiming expired leases", err)
	}
	return tag.RowsAffected(), nil
}

// CreateBatch inserts every item in one transaction, so a batch commit's
// per-week chunk either lands entirely or rolls back entirely (§4.4): "if
// insertion fails mid-chunk, the chunk is rolled back (per-week atomicity,
// not per-batch)".
func (s *Store) CreateBatch(ctx context.Context, items []CreateParams) ([]Post, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, schederr.Transient("beginning batch insert transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created := make([]Post, 0, len(items))
	for _, p := range items {
		row := tx.QueryRow(ctx, `
			INSERT INTO posts (account_id, platform, post_type, media_url, caption, scheduled_at,
				client_request_id, asset_id, status, retry_count, publish_result)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', 0, '{}'::jsonb)
			RETURNING `+postColumns,
			p.AccountID, p.Platform, p.PostType, p.MediaURL, p.Caption, p.ScheduledAt,
			p.ClientRequestID, p.AssetID,
		)
		post, err := scanPost(row)
		if err != nil {
			return nil, schederr.Transient("inserting batch post", err)
		}
		created = append(created, post)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, schederr.Transient("committing batch insert", err)
	}
	return created, nil
}

// FailAllNonTerminal flips every non-terminal post for an account to failed
// with the given error code, used by account freeze (§4.7, §6, §8).
func (s *Store) FailAllNonTerminal(ctx context.Context, accountID int64, errorCode string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE posts SET status = 'failed', error_code = $2, locked_at = NULL, updated_at = now()
		WHERE account_id = $1 AND status NOT IN ('posted', 'failed', 'cancelled')`,
		accountID, errorCode,
	)
	if err != nil {
		return 0, schederr.Transient("failing posts for frozen account", err)
	}
	return tag.RowsAffected(), nil
}
