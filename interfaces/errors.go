package interfaces

import "errors"

var (
	// ErrRoleNotFound is returned when a role has no configuration in the metadata.
	ErrRoleNotFound = errors.New("role not found")

	// ErrKeyResolution is returned when a key provider fails to resolve key material.
	// It aborts the run before anything is committed.
	ErrKeyResolution = errors.New("key resolution failed")

	// ErrVCS is returned when a version control command fails.
	ErrVCS = errors.New("version control command failed")

	// ErrAborted is returned when the operator input ends before a prompt is answered.
	ErrAborted = errors.New("aborted by user")

	// ErrInvalidLocator is returned when an online key locator is malformed or unsupported.
	ErrInvalidLocator = errors.New("invalid key locator")

	// ErrNoSigningKey is returned when the acting user has no signing key configured.
	ErrNoSigningKey = errors.New("no signing key configured")
)
