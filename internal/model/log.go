package model

import "time"

// LogEntry is an append-only row in the `logs` table recording upload
// actions. The application only ever writes these rows; nothing reads
// them back.
type LogEntry struct {
	ID        uint64    // logs.id
	UserID    uint64    // logs.user_id
	Action    string    // logs.action
	CreatedAt time.Time // logs.created_at
}
