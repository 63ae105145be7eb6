package schema

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

// FieldSpec declares one field of a Struct schema.
type FieldSpec struct {
	Name string
	Kind Kind
	// Len is the byte capacity of KindString fields. Ignored otherwise.
	Len int
	// Default is the constructed value. Nil means the zero value.
	Default any
}

// Struct is a Schema built from a list of field specs laid out back to back.
type Struct struct {
	name     string
	size     int
	fields   []Field
	template []byte
	invalid  atomic.Bool
}

var _ Schema = (*Struct)(nil)

// NewStruct builds a schema from field specs.
func NewStruct(name string, specs ...FieldSpec) (*Struct, error) {
	if name == "" || len(specs) == 0 {
		return nil, fmt.Errorf("%w: %q needs a name and at least one field", ErrInvalidLayout, name)
	}

	s := &Struct{name: name}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.Name]; dup || spec.Name == "" {
			return nil, fmt.Errorf("%w: %s: bad or duplicate field %q", ErrInvalidLayout, name, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		w := spec.Kind.width(spec.Len)
		if w <= 0 {
			return nil, fmt.Errorf("%w: %s.%s has no size", ErrInvalidLayout, name, spec.Name)
		}
		s.fields = append(s.fields, Field{Name: spec.Name, Kind: spec.Kind, Offset: s.size, Size: w})
		s.size += w
	}

	s.template = make([]byte, s.size)
	for i, spec := range specs {
		if spec.Default == nil {
			continue
		}
		if err := s.fields[i].Set(s.template, spec.Default); err != nil {
			return nil, fmt.Errorf("%w: default: %w", ErrInvalidLayout, err)
		}
	}
	return s, nil
}

// MustStruct is like NewStruct but panics on error.
func MustStruct(name string, specs ...FieldSpec) *Struct {
	s, err := NewStruct(name, specs...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name implements Schema.
func (s *Struct) Name() string { return s.name }

// Size implements Schema.
func (s *Struct) Size() int { return s.size }

// Construct implements Schema.
func (s *Struct) Construct(rec []byte) { copy(rec[:s.size], s.template) }

// Destruct implements Schema.
func (s *Struct) Destruct(rec []byte) { clear(rec[:s.size]) }

// Copy implements Schema.
func (s *Struct) Copy(dst, src []byte) { copy(dst[:s.size], src[:s.size]) }

// Equal implements Schema.
func (s *Struct) Equal(a, b []byte) bool { return bytes.Equal(a[:s.size], b[:s.size]) }

// Fields implements Schema.
func (s *Struct) Fields() []Field { return s.fields }

// Valid implements Schema.
func (s *Struct) Valid() bool { return !s.invalid.Load() }

// Invalidate marks the descriptor torn down. Records still held by pools are
// freed without being destructed.
func (s *Struct) Invalidate() { s.invalid.Store(true) }

// Field returns the named field.
func (s *Struct) Field(name string) (Field, bool) { return FieldByName(s, name) }

// Set writes a field of rec by name.
func (s *Struct) Set(rec []byte, name string, v any) error {
	f, ok := s.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.name, name)
	}
	return f.Set(rec, v)
}

// Get reads a field of rec by name.
func (s *Struct) Get(rec []byte, name string) (any, error) {
	f, ok := s.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, s.name, name)
	}
	return f.Value(rec), nil
}
