package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrConfiguration indicates that a required configuration value is missing.
// The webhook path fails closed on this: requests are rejected, never accepted.
var ErrConfiguration = errors.New("configuration error")

// ErrAuthentication indicates a missing or invalid request signature or credential.
var ErrAuthentication = errors.New("authentication error")

// ErrPersistence indicates that the backing storage could not be read or written.
var ErrPersistence = errors.New("persistence error")

// ErrCollaborator indicates a failure in an external collaborator (role system,
// announcement channel). Never fatal once the ledger mutation is committed.
var ErrCollaborator = errors.New("collaborator error")

// ErrDuplicateEvent indicates a webhook event whose event ID was already processed.
var ErrDuplicateEvent = errors.New("duplicate event")
