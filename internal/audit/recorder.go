package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/Akash1430/POCPortal/internal/auth"
)

// DefaultBufferSize is the channel capacity used when NewRecorder gets a
// non-positive size.
const DefaultBufferSize = 256

// SourceAuth marks rows written by the Recorder.
const SourceAuth = "auth"

// Entity types recorded in audit rows.
const (
	EntityAccount      = "account"
	EntityRefreshToken = "refresh_token"
	EntityRole         = "role"
)

// Recorder writes security events to a Repository asynchronously.
type Recorder struct {
	repo    Repository
	logger  *slog.Logger
	ch      chan *AuditLog
	dropped atomic.Int64
}

// NewRecorder creates a recorder. Call Run to start writing.
func NewRecorder(repo Repository, logger *slog.Logger, size int) *Recorder {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, size),
	}
}

// OnSecurityEvent implements auth.Observer. It never blocks.
func (r *Recorder) OnSecurityEvent(_ context.Context, ev auth.Event) {
	entry := FromEvent(ev)
	select {
	case r.ch <- entry:
	default:
		r.dropped.Add(1)
		r.logger.Warn("audit channel full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Dropped returns how many entries were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left in the buffer and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(entry *AuditLog) {
	// Detached from the request context: the request has usually finished.
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}
}

// FromEvent maps a security event to an audit row.
func FromEvent(ev auth.Event) *AuditLog {
	entry := &AuditLog{
		Action:     string(ev.Type),
		EntityType: entityType(ev.Type),
		EntityID:   ev.EntityID,
		UserID:     ev.ActorID,
		Source:     SourceAuth,
		CreatedAt:  ev.At,
		Details:    map[string]any{"outcome": ev.Outcome},
	}
	if entry.EntityID == "" {
		entry.EntityID = ev.AccountID
	}
	if entry.UserID == "" {
		entry.UserID = ev.AccountID
	}
	if ev.AccountID != "" && ev.AccountID != entry.EntityID {
		entry.Details["account_id"] = ev.AccountID
	}
	if ev.RoleCode != "" {
		entry.Details["role"] = string(ev.RoleCode)
	}
	if ev.Count > 0 {
		entry.Details["count"] = ev.Count
	}
	if ev.Reason != "" {
		entry.Details["reason"] = ev.Reason
	}
	return entry
}

func entityType(t auth.EventType) string {
	switch {
	case strings.HasPrefix(string(t), "role_"):
		return EntityRole
	case strings.HasPrefix(string(t), "token"), t == auth.EventRefreshRejected, t == auth.EventLogout:
		return EntityRefreshToken
	default:
		return EntityAccount
	}
}
