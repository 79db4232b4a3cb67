package shared

import "errors"

var (
	// ErrUnauthenticated indicates there is no caller: missing or unknown session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired indicates the session token is known but past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrAccountInactive indicates the session resolves to a deactivated account.
	ErrAccountInactive = errors.New("account inactive")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates an authenticated caller lacks permission.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness or referential conflict.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates a missing or malformed field.
	ErrValidation = errors.New("validation failed")
	// ErrStorageUnavailable indicates the relational store could not serve the request.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSchemaMissing indicates a referenced table or column does not exist.
	ErrSchemaMissing = errors.New("schema object missing")
	// ErrAuditWriteFailed indicates the audit entry could not be appended after a committed mutation.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// WarningAuditWriteFailed is attached to mutation responses whose audit append failed.
const WarningAuditWriteFailed = "audit_write_failed"
