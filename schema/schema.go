// Package schema describes fixed-layout records.
//
// A Schema is an opaque capability set: it knows a record's byte footprint and
// how to default-construct, destroy, copy and compare records, and it
// enumerates its fields with per-field formatting. Tables store records as raw
// byte slices of exactly Size() bytes and never interpret them.
package schema

import "errors"

var (
	// ErrUnknownField is returned when a field name is not part of a schema.
	ErrUnknownField = errors.New("schema: unknown field")
	// ErrFieldType is returned when a value does not fit a field's kind.
	ErrFieldType = errors.New("schema: value does not match field kind")
	// ErrNotRegistered is returned when a registry has no schema by that name.
	ErrNotRegistered = errors.New("schema: not registered")
	// ErrInvalidLayout is returned for schemas with no fields or bad sizes.
	ErrInvalidLayout = errors.New("schema: invalid layout")
)

// Schema describes one record type.
type Schema interface {
	// Name identifies the schema inside a table and in persisted files.
	Name() string
	// Size is the record byte footprint.
	Size() int
	// Construct writes the default value into rec.
	Construct(rec []byte)
	// Destruct finalizes rec. Records are not read after destruction.
	Destruct(rec []byte)
	// Copy overwrites dst with src.
	Copy(dst, src []byte)
	// Equal reports whether two records hold the same value.
	Equal(a, b []byte) bool
	// Fields enumerates the record fields in layout order.
	Fields() []Field
	// Valid reports whether the descriptor is still usable. A descriptor may
	// be torn down by its owner before the records that use it.
	Valid() bool
}

// FieldByName finds a field of s.
func FieldByName(s Schema, name string) (Field, bool) {
	for _, f := range s.Fields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Describe formats every field of rec as "name=value" pairs.
func Describe(s Schema, rec []byte) map[string]string {
	out := make(map[string]string, len(s.Fields()))
	for _, f := range s.Fields() {
		out[f.Name] = f.Format(rec)
	}
	return out
}
