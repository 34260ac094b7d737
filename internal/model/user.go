package model

import "time"

// User represents an application account as stored in the `users` table.
// Accounts are created at registration and never deleted by the
// application; the only mutable field in practice is the password hash.
// Role may be empty for accounts registered through the public flow —
// such identities are authenticated but carry no authorization scope.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of "doctor", "admin", "patient", or "" (unscoped).
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role (may be empty)
	CreatedAt    time.Time // users.created_at
}
