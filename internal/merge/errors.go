package merge

import "errors"

// Sentinel errors for package merge.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// ErrStartup wraps every failure that aborts a run before any worker starts.
	ErrStartup = errors.New("startup failure")

	// Option errors
	ErrInvalidOptions   = errors.New("invalid options")
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

	// Per-file errors
	ErrExpectedFile = errors.New("expected file, got directory")
)
