package affinity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when a stream's format version cannot
	// be loaded.
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrSchemaNotRegistered is returned when a schema name has no page.
	ErrSchemaNotRegistered = errors.New("schema not registered")
	// ErrSchemaMismatch is returned when two schemas that must agree differ.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrCorrupt is returned when a stream fails its integrity checks.
	ErrCorrupt = errors.New("corrupt table data")
	// ErrInvalidTag is returned for malformed or unknown tags.
	ErrInvalidTag = errors.New("invalid tag")
	// ErrTagNotFound is returned when a tag is not indexed.
	ErrTagNotFound = errors.New("tag not found")
	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("table closed")
)

// FormatError indicates a stream whose version is older than every known
// historical loader or newer than this build.
//
// The underlying error, if any, is available through errors.Unwrap.
type FormatError struct {
	Version uint32
	Current uint32
	cause   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported table format: version %d (current %d)", e.Version, e.Current)
}

// Is makes errors.Is(err, ErrUnsupportedFormat) hold for every FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

func (e *FormatError) Unwrap() error { return e.cause }

// FootprintError describes a page whose stored record size differs from the
// registered schema. Loading reports it as a warning only.
type FootprintError struct {
	Schema string
	Stored int
	Actual int
}

func (e *FootprintError) Error() string {
	return fmt.Sprintf("schema %s footprint changed: stored %d bytes, registered %d", e.Schema, e.Stored, e.Actual)
}

// Is makes errors.Is(err, ErrSchemaMismatch) hold for every FootprintError.
func (e *FootprintError) Is(target error) bool { return target == ErrSchemaMismatch }
