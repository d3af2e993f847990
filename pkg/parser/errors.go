package parser

import "errors"

// Common errors returned by the parser package.
var (
	// ErrMalformedJSON is returned when a line is not valid JSON.
	ErrMalformedJSON = errors.New("malformed JSON line")

	// ErrMissingTimestamp is returned when a record has no parseable
	// timestamp. Such records cannot be ordered or windowed and are
	// dropped.
	ErrMissingTimestamp = errors.New("record has no parseable timestamp")

	// ErrNoUsageData is returned when a line carries no token field at
	// all. Note that an explicit zero-valued usage object is NOT this
	// case: present-with-zero is valid usage data.
	ErrNoUsageData = errors.New("record carries no usage data")

	// ErrNegativeTokenCount is returned when a token count is negative.
	ErrNegativeTokenCount = errors.New("negative token count")

	// ErrFileTooLarge is returned when a JSONL file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)
