// Package schema describes how the value of a Kafka record is decoded into an
// ordered list of named, typed fields.
package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type DataFormat string

const (
	FormatJSON DataFormat = "json"
	FormatCSV  DataFormat = "csv"
	FormatAvro DataFormat = "avro"
)

type Type string

const (
	TypeBoolean   Type = "BOOLEAN"
	TypeTinyInt   Type = "TINYINT"
	TypeSmallInt  Type = "SMALLINT"
	TypeInteger   Type = "INTEGER"
	TypeBigInt    Type = "BIGINT"
	TypeFloat     Type = "FLOAT"
	TypeDouble    Type = "DOUBLE"
	TypeDecimal   Type = "DECIMAL"
	TypeDate      Type = "DATE"
	TypeTimestamp Type = "TIMESTAMP"
	TypeVarchar   Type = "VARCHAR"
)

func (t Type) valid() bool {
	switch t {
	case TypeBoolean, TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt,
		TypeFloat, TypeDouble, TypeDecimal, TypeDate, TypeTimestamp, TypeVarchar:
		return true
	}
	return false
}

// Field is one column of a topic. Mapping locates the value inside the
// message: a dotted path for json and avro, a zero-based column for csv.
// FormatHint is a Go time layout used for DATE and TIMESTAMP strings.
type Field struct {
	Name       string `yaml:"name"`
	Type       Type   `yaml:"type"`
	Mapping    string `yaml:"mapping"`
	FormatHint string `yaml:"format_hint"`
}

type Topic struct {
	Name         string     `yaml:"name"`
	DataFormat   DataFormat `yaml:"data_format"`
	AvroSchema   string     `yaml:"avro_schema"`
	CSVDelimiter string     `yaml:"csv_delimiter"`
	Fields       []Field    `yaml:"fields"`
}

// Value is a decoded field as handed to the row projector.
type Value struct {
	Name  string
	Value any
}

func (t Topic) Validate() error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch t.DataFormat {
	case FormatJSON, FormatCSV:
	case FormatAvro:
		if t.AvroSchema == "" {
			errs = append(errs, errors.New("avro_schema is required for avro topics"))
		}
	default:
		errs = append(errs, fmt.Errorf("data_format %q is not valid (must be json, csv, or avro)", t.DataFormat))
	}
	if len([]rune(t.CSVDelimiter)) > 1 {
		errs = append(errs, fmt.Errorf("csv_delimiter %q must be a single character", t.CSVDelimiter))
	}
	if len(t.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}
	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: name is required", i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate name %q", i, f.Name))
		}
		seen[f.Name] = true
		if !f.Type.valid() {
			errs = append(errs, fmt.Errorf("field %q: unsupported type %q", f.Name, f.Type))
		}
		if t.DataFormat == FormatCSV && f.Mapping != "" {
			if n, err := strconv.Atoi(f.Mapping); err != nil || n < 0 {
				errs = append(errs, fmt.Errorf("field %q: csv mapping %q is not a column index", f.Name, f.Mapping))
			}
		}
	}
	return errors.Join(errs...)
}

// path returns the lookup path of f for map-shaped formats.
func (f Field) path() []string {
	m := f.Mapping
	if m == "" {
		m = f.Name
	}
	return strings.Split(m, ".")
}

// Catalog holds the decoding schema of every readable topic.
type Catalog map[string]Topic

func NewCatalog(topics []Topic) (Catalog, error) {
	c := make(Catalog, len(topics))
	var errs []error
	for i, t := range topics {
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("topics[%d] %q: %w", i, t.Name, err))
			continue
		}
		if _, dup := c[t.Name]; dup {
			errs = append(errs, fmt.Errorf("topics[%d]: duplicate topic %q", i, t.Name))
			continue
		}
		c[t.Name] = t
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c Catalog) Lookup(topic string) (Topic, bool) {
	t, ok := c[topic]
	return t, ok
}
