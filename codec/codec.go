// Package codec holds the document codecs used by exports and the
// compressors wrapped around serialized tables in a blob store.
//
// A compressor is recorded by name in the blob envelope, so a table saved
// with one compressor loads without the caller naming it again.
package codec

import "fmt"

// Codec turns export documents into bytes and back. Implementations are
// stateless and safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName looks up a built-in codec: "json" or "go-json".
func ByName(name string) (Codec, bool) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// MustMarshal marshals v with c, or with Default when c is nil, and panics
// on error.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec %s: %v", c.Name(), err))
	}
	return b
}
