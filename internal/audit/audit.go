// Package audit implements an async, buffered audit log writer: handlers
// and the driver enqueue entries describing account/post mutations, and a
// background goroutine batches them to the database so the write never
// blocks the request or publish path.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a single audit log entry to be written.
type Entry struct {
	Actor      string // "api" for HTTP-originated entries, "scheduler" for driver-originated ones
	AccountID  *int64
	PostID     *int64
	Action     string // e.g. "post.created", "post.cancelled", "account.frozen"
	Detail     json.RawMessage
	IPAddress  *netip.Addr
	UserAgent  *string
}

// Writer is an async, buffered audit log writer. Entries are sent to an
// internal channel and flushed by a background goroutine.
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// NewWriter creates an audit Writer. Call Start to begin processing entries.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:    pool,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
	}
}

// Start begins the background goroutine that flushes audit entries to the
// database and returns at once. The goroutine exits after the context is
// cancelled and pending entries are flushed.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for all pending entries to be flushed.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an audit entry for async writing. It never blocks the
// caller; if the buffer is full the entry is dropped and a warning logged.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry", "action", entry.Action)
	}
}

// LogFromRequest is a convenience method that extracts IP and user agent
// from the request context, then enqueues the entry.
func (w *Writer) LogFromRequest(r *http.Request, action string, accountID, postID *int64, detail json.RawMessage) {
	entry := Entry{
		Actor:     "api",
		AccountID: accountID,
		PostID:    postID,
		Action:    action,
		Detail:    detail,
	}

	ip := clientIP(r)
	if ip.IsValid() {
		entry.IPAddress = &ip
	}

	ua := r.Header.Get("User-Agent")
	if ua != "" {
		entry.UserAgent = &ua
	}

	w.Log(entry)
}

// LogFromScheduler records an entry originating from the driver/scheduler
// rather than an HTTP request (no IP/user agent to capture).
func (w *Writer) LogFromScheduler(action string, accountID, postID *int64, detail json.RawMessage) {
	w.Log(Entry{Actor: "scheduler", AccountID: accountID, PostID: postID, Action: action, Detail: detail})
}

// run is the background loop that drains the entries channel.
func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of entries to the database in one statement per
// entry; a failed write is logged and the remaining entries still attempt.
func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range entries {
		_, err := w.pool.Exec(ctx, `
			INSERT INTO audit_log (actor, account_id, post_id, action, detail, ip_address, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			e.Actor, e.AccountID, e.PostID, e.Action, e.Detail, ipString(e.IPAddress), e.UserAgent,
		)
		if err != nil {
			w.logger.Error("writing audit log entry", "error", err, "action", e.Action)
		}
	}
}

func ipString(addr *netip.Addr) *string {
	if addr == nil {
		return nil
	}
	s := addr.String()
	return &s
}

// clientIP extracts the client IP address from the request, preferring
// X-Forwarded-For and X-Real-IP headers over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
