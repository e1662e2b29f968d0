package schema

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/linkedin/goavro/v2"
)

// Decoder turns a raw record value into the topic's fields, in schema order.
type Decoder interface {
	Decode(data []byte) ([]Value, error)
}

func NewDecoder(t Topic) (Decoder, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("topic %q: %w", t.Name, err)
	}
	switch t.DataFormat {
	case FormatJSON:
		return &jsonDecoder{fields: t.Fields}, nil
	case FormatCSV:
		return newCSVDecoder(t), nil
	case FormatAvro:
		codec, err := goavro.NewCodec(t.AvroSchema)
		if err != nil {
			return nil, fmt.Errorf("topic %q: avro schema: %w", t.Name, err)
		}
		return &avroDecoder{codec: codec, fields: t.Fields}, nil
	}
	return nil, fmt.Errorf("topic %q: unsupported data format %q", t.Name, t.DataFormat)
}

type jsonDecoder struct {
	fields []Field
}

func (d *jsonDecoder) Decode(data []byte) ([]Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("json: expected an object, got %T", doc)
	}
	return project(d.fields, doc, false)
}

type csvDecoder struct {
	fields  []Field
	columns []int
	comma   rune
}

func newCSVDecoder(t Topic) *csvDecoder {
	d := &csvDecoder{fields: t.Fields, columns: make([]int, len(t.Fields)), comma: ','}
	if t.CSVDelimiter != "" {
		d.comma = []rune(t.CSVDelimiter)[0]
	}
	for i, f := range t.Fields {
		d.columns[i] = i
		if f.Mapping != "" {
			d.columns[i], _ = strconv.Atoi(f.Mapping)
		}
	}
	return d
}

func (d *csvDecoder) Decode(data []byte) ([]Value, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = d.comma
	r.FieldsPerRecord = -1
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	out := make([]Value, len(d.fields))
	for i, f := range d.fields {
		var raw any
		if col := d.columns[i]; col < len(row) {
			raw = row[col]
		}
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[i] = Value{Name: f.Name, Value: v}
	}
	return out, nil
}

type avroDecoder struct {
	codec  *goavro.Codec
	fields []Field
}

func (d *avroDecoder) Decode(data []byte) ([]Value, error) {
	native, _, err := d.codec.NativeFromBinary(data)
	if err != nil {
		return nil, fmt.Errorf("avro: %w", err)
	}
	return project(d.fields, native, true)
}

// project resolves every field's path in doc and coerces it.
func project(fields []Field, doc any, unions bool) ([]Value, error) {
	out := make([]Value, len(fields))
	for i, f := range fields {
		raw, _ := lookup(doc, f.path(), unions)
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[i] = Value{Name: f.Name, Value: v}
	}
	return out, nil
}

var errNotFound = errors.New("not found")

// lookup walks a dotted path through nested maps. With unions set, goavro's
// single-branch union wrappers ({"long": 5}) are unwrapped along the way.
func lookup(doc any, path []string, unions bool) (any, error) {
	cur := doc
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, errNotFound
		}
		next, ok := m[key]
		if !ok && unions {
			if inner, wrapped := unwrapUnion(m); wrapped {
				if im, ok2 := inner.(map[string]any); ok2 {
					next, ok = im[key]
				}
			}
		}
		if !ok {
			return nil, errNotFound
		}
		cur = next
	}
	if unions {
		if m, ok := cur.(map[string]any); ok {
			if inner, wrapped := unwrapUnion(m); wrapped {
				cur = inner
			}
		}
	}
	return cur, nil
}

func unwrapUnion(m map[string]any) (any, bool) {
	if len(m) != 1 {
		return nil, false
	}
	for _, v := range m {
		return v, true
	}
	return nil, false
}
