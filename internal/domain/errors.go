package domain

import "errors"

var (
	// ErrMalformedKey indicates a date-key that is not a valid YYYY-MM-DD calendar date.
	ErrMalformedKey = errors.New("malformed date key")
	// ErrRangeInvalid indicates a range read whose start is after its end.
	ErrRangeInvalid = errors.New("invalid date range")
	// ErrRemoteUnavailable indicates a transport, status or decoding failure talking to the remote store.
	ErrRemoteUnavailable = errors.New("remote unavailable")
	// ErrUnauthorized indicates a missing or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCounts indicates negative counts or a slot not allowed for the operation.
	ErrInvalidCounts = errors.New("invalid slot counts")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
)
