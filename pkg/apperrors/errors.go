package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// Run-level input failures. These abort a sanity run before any report is produced.
	ErrMissingInput                = errors.New("required input missing")
	ErrMalformedJSON               = errors.New("malformed JSON")
	ErrInvalidSpec                 = errors.New("invalid declarative spec")
	ErrUnsupportedRelationshipType = errors.New("unsupported relationship type")

	// Record access failures on semi-structured values.
	ErrFieldMissing = errors.New("field missing")
	ErrTypeMismatch = errors.New("type mismatch")
)
