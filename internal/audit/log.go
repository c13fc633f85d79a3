package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pokeswap.org/internal/auth"
	"pokeswap.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// Entry is one persisted audit record.
type Entry struct {
	ID        int64             `json:"id"`
	Action    string            `json:"action"`
	UserID    int64             `json:"userId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store persists audit entries.
type Store interface {
	AppendLog(ctx context.Context, e Entry) (Entry, error)
	// ListLogs returns entries with from <= timestamp < to ordered by time.
	// A zero bound is open.
	ListLogs(ctx context.Context, from, to time.Time) ([]Entry, error)
}

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit line enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ev := obs.Logger().Info().Str("type", "audit").Str("event", event)
	if rid := requestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		ev = ev.Int64("user_id", userID)
	}
	dict := zerolog.Dict()
	for k, v := range fields {
		dict = dict.Str(k, v)
	}
	ev.Dict("fields", dict).Send()
	return nil
}

// Recorder logs audit events and persists them for export.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder constructs a Recorder. A nil store only logs.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record logs event and appends it to the store.
func (r *Recorder) Record(ctx context.Context, event string, fields map[string]string) error {
	if err := LogEvent(ctx, event, fields); err != nil {
		return err
	}
	if r == nil || r.store == nil {
		return nil
	}
	entry := Entry{Action: event, Timestamp: r.now().UTC(), Metadata: copyFields(fields)}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry.UserID = userID
	}
	_, err := r.store.AppendLog(ctx, entry)
	return err
}

// Export returns entries within [from, to).
func (r *Recorder) Export(ctx context.Context, from, to time.Time) ([]Entry, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, errors.New("end date precedes start date")
	}
	return r.store.ListLogs(ctx, from, to)
}

func copyFields(fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
