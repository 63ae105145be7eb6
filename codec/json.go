package codec

import "encoding/json"

// JSON encodes documents with encoding/json. Map keys come out sorted, which
// keeps exports diffable.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (JSON) Name() string { return "json" }

// Default is the codec exports use unless told otherwise. Exported documents
// carry the codec name.
var Default Codec = GoJSON{}
