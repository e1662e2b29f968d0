package sink

import (
	"bytes"
	"encoding/json"
)

// JSONRow builds one JSON object with keys in offer order.
type JSONRow struct {
	buf bytes.Buffer
	n   int
}

// Add appends "field":value. It fails when value has no JSON encoding.
func (r *JSONRow) Add(field string, value any) error {
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k, _ := json.Marshal(field)
	if r.n == 0 {
		r.buf.WriteByte('{')
	} else {
		r.buf.WriteByte(',')
	}
	r.buf.Write(k)
	r.buf.WriteByte(':')
	r.buf.Write(v)
	r.n++
	return nil
}

// Bytes returns the encoded object. The slice is valid until Reset.
func (r *JSONRow) Bytes() []byte {
	if r.n == 0 {
		return []byte("{}")
	}
	return append(r.buf.Bytes(), '}')
}

func (r *JSONRow) Reset() {
	r.buf.Reset()
	r.n = 0
}
