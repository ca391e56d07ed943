package store

import (
	"context"
	"fmt"
	"time"
)

// CallEvent is one observability record for a call. Inserts are fire and
// forget from the session's point of view.
type CallEvent struct {
	ID        int64     `db:"id" json:"id"`
	CallSID   string    `db:"call_sid" json:"call_sid"`
	Event     string    `db:"event" json:"event"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const sqlInsertCallEvent = `
INSERT INTO call_logs (call_sid, event, detail)
VALUES ($1, $2, $3)`

func (s *Store) InsertCallEvent(ctx context.Context, callSID, event, detail string) error {
	if _, err := s.db.ExecContext(ctx, sqlInsertCallEvent, callSID, event, detail); err != nil {
		return fmt.Errorf("failed to insert call event: %w", err)
	}
	return nil
}

const sqlGetCallEvents = `
SELECT id, call_sid, event, detail, created_at
FROM call_logs
WHERE ($1 = '' OR event = $1)
  AND ($2 = '' OR detail ILIKE '%' || $2 || '%' OR call_sid = $2)
ORDER BY id DESC
LIMIT $3`

// GetCallEvents returns recent call events, optionally filtered by event name
// and a free-text search over detail or an exact call SID.
func (s *Store) GetCallEvents(ctx context.Context, event, search string, limit int) ([]CallEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	var events []CallEvent
	if err := s.db.SelectContext(ctx, &events, sqlGetCallEvents, event, search, limit); err != nil {
		return nil, fmt.Errorf("failed to get call events: %w", err)
	}
	return events, nil
}
