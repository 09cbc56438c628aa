package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// Session / chat validation. Reported to the originating session only.
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnknownSession = errors.New("unknown session")

	// Storage
	ErrCorruptSnapshot = errors.New("snapshot is corrupted")
	ErrCacheMiss       = errors.New("cache miss")

	// Remote collaborators (reputation source, semantic validator)
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	ErrMalformedResponse = errors.New("malformed remote response")
)
