package config

import "errors"

// ErrNotFound is returned when a requested record does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRevoked is returned when revoking a key that is already revoked.
// Callers rely on it to detect duplicate revoke attempts.
var ErrAlreadyRevoked = errors.New("api key already revoked")
