package schema

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Kind is the storage kind of a field.
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInt32
	KindInt64
	KindUint32
	KindFloat32
	KindFloat64
	// KindString is a fixed-capacity, zero-padded UTF-8 string.
	KindString
)

var kindNames = map[Kind]string{
	KindBool:    "bool",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint32:  "uint32",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind maps a kind name back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// width returns the byte size of a kind; strings use their capacity.
func (k Kind) width(capacity int) int {
	switch k {
	case KindBool:
		return 1
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindFloat64:
		return 8
	case KindString:
		return capacity
	}
	return 0
}

// Field is one slot of a record layout.
type Field struct {
	Name   string
	Kind   Kind
	Offset int
	Size   int
}

func (f Field) bytes(rec []byte) []byte {
	return rec[f.Offset : f.Offset+f.Size]
}

// Value decodes the field from rec.
func (f Field) Value(rec []byte) any {
	b := f.bytes(rec)
	switch f.Kind {
	case KindBool:
		return b[0] != 0
	case KindInt32:
		return int32(binary.LittleEndian.Uint32(b))
	case KindInt64:
		return int64(binary.LittleEndian.Uint64(b))
	case KindUint32:
		return binary.LittleEndian.Uint32(b)
	case KindFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	case KindFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	case KindString:
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		return string(b)
	}
	return nil
}

// Set encodes v into the field of rec. Numeric kinds accept any Go integer or
// float type; strings longer than the field capacity are rejected.
func (f Field) Set(rec []byte, v any) error {
	b := f.bytes(rec)
	switch f.Kind {
	case KindBool:
		bv, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: %s wants bool, got %T", ErrFieldType, f.Name, v)
		}
		b[0] = 0
		if bv {
			b[0] = 1
		}
	case KindInt32, KindUint32, KindInt64:
		iv, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("%w: %s wants integer, got %T", ErrFieldType, f.Name, v)
		}
		if f.Size == 4 {
			binary.LittleEndian.PutUint32(b, uint32(iv))
		} else {
			binary.LittleEndian.PutUint64(b, uint64(iv))
		}
	case KindFloat32:
		fv, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("%w: %s wants float, got %T", ErrFieldType, f.Name, v)
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(fv)))
	case KindFloat64:
		fv, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("%w: %s wants float, got %T", ErrFieldType, f.Name, v)
		}
		binary.LittleEndian.PutUint64(b, math.Float64bits(fv))
	case KindString:
		sv, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string, got %T", ErrFieldType, f.Name, v)
		}
		if len(sv) > f.Size {
			return fmt.Errorf("%w: %s holds at most %d bytes", ErrFieldType, f.Name, f.Size)
		}
		clear(b)
		copy(b, sv)
	default:
		return fmt.Errorf("%w: %s has unknown kind %s", ErrFieldType, f.Name, f.Kind)
	}
	return nil
}

// Parse sets the field from its textual form.
func (f Field) Parse(rec []byte, s string) error {
	switch f.Kind {
	case KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFieldType, f.Name, err)
		}
		return f.Set(rec, v)
	case KindInt32, KindInt64, KindUint32:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFieldType, f.Name, err)
		}
		return f.Set(rec, v)
	case KindFloat32, KindFloat64:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrFieldType, f.Name, err)
		}
		return f.Set(rec, v)
	}
	return f.Set(rec, s)
}

// Format renders the field of rec as text.
func (f Field) Format(rec []byte) string {
	switch v := f.Value(rec).(type) {
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// CopyValue copies the field from src into dst.
func (f Field) CopyValue(dst, src []byte) {
	copy(f.bytes(dst), f.bytes(src))
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
