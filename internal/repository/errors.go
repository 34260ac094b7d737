// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios: for
// example, ErrForbidden indicates that a doctor has no link to the
// patient owning a result, while ErrUsernameExists signals a duplicate
// registration.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// patient's data without a doctor_patient link. Handlers should
// translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrUsernameExists is returned when a registration collides with an
// existing username. Handlers should translate this into an HTTP 400
// response, matching the public API contract.
var ErrUsernameExists = errors.New("username already exists")

// ErrPatientNotFound is returned when a referenced patient id does not
// resolve to a row. Handlers should translate this into an HTTP 404.
var ErrPatientNotFound = errors.New("patient not found")
