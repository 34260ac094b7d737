package repository

import (
	"context"
	"database/sql"
)

// LogRepo appends to the `logs` audit table. The table is a write-only
// sink: nothing in the application reads it back.
type LogRepo struct {
	db *sql.DB
}

// NewLogRepo returns a new LogRepo bound to the given database.
func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{db: db} }

// Append records an action performed by a user. Failures here should be
// logged by the caller but never fail the request that triggered them.
func (r *LogRepo) Append(ctx context.Context, userID uint64, action string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO logs (user_id, action) VALUES (?,?)",
		userID, action)
	return err
}
