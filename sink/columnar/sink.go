// Package columnar is the Arrow row sink. Rows are staged field by field and
// committed to an array.RecordBuilder only when the row writer reports one
// complete row; full blocks are handed to OnBlock as arrow.Record values.
package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"kafkasplit/internal/logging"
	"kafkasplit/sink"
)

const defaultMaxRows = 4096

type Config struct {
	Schema      *arrow.Schema
	MaxRows     int // rows per block
	Constraints map[string]Constraint
	// OnBlock receives each finished block. The record is released after
	// the call returns; Retain it to keep it.
	OnBlock   func(arrow.Record) error
	Allocator memory.Allocator
}

type driver struct {
	cfg   Config
	rb    *array.RecordBuilder
	index map[string]int
	cons  []*Constraint // by column

	staged  []any
	offered []bool
	rows    int // rows in the current block
	dead    bool

	stats  sink.Stats
	closed bool
}

// New returns a configured columnar sink.
func New(cfg Config) (sink.Adapter, error) {
	d := &driver{}
	if err := d.Configure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("columnar-sink: expected Config, got %T", raw)
	}
	if c.Schema == nil || c.Schema.NumFields() == 0 {
		return errors.New("columnar-sink: schema with at least one field is required")
	}
	if err := checkColumns(c.Schema, c.Constraints); err != nil {
		return fmt.Errorf("columnar-sink: %w", err)
	}
	if c.MaxRows <= 0 {
		c.MaxRows = defaultMaxRows
	}
	if c.Allocator == nil {
		c.Allocator = memory.NewGoAllocator()
	}
	if d.rb != nil {
		d.rb.Release()
	}

	n := c.Schema.NumFields()
	d.cfg = c
	d.rb = array.NewRecordBuilder(c.Allocator, c.Schema)
	d.index = make(map[string]int, n)
	d.cons = make([]*Constraint, n)
	for i, f := range c.Schema.Fields() {
		d.index[f.Name] = i
		if con, ok := c.Constraints[f.Name]; ok {
			d.cons[i] = &con
		}
	}
	d.staged = make([]any, n)
	d.offered = make([]bool, n)
	d.rows, d.stats, d.closed = 0, sink.Stats{}, false
	return nil
}

// OfferValue stages value for field in the row being built. It rejects
// unknown fields, a row index other than the current one, values that do
// not convert to the column type and values failing the column constraint.
func (d *driver) OfferValue(field string, row int, value any) bool {
	if d.dead {
		return false
	}
	i, ok := d.index[field]
	if !ok || row != d.rows {
		d.dead = true
		return false
	}
	var v any
	if value != nil {
		cv, err := convert(d.cfg.Schema.Field(i).Type, value)
		if err != nil {
			logging.L().Debug("columnar-sink: value rejected", "field", field, "err", err)
			d.dead = true
			return false
		}
		v = cv
	}
	if c := d.cons[i]; c != nil && !c.Allows(v) {
		d.dead = true
		return false
	}
	d.staged[i], d.offered[i] = v, true
	return true
}

func (d *driver) WriteRows(w sink.RowWriter) error {
	if d.closed || d.rb == nil {
		return errors.New("columnar-sink: not open")
	}
	d.reset()
	n, err := w(d, d.rows)
	if err != nil {
		d.reset()
		return err
	}
	if n != 1 || d.dead || !d.complete() {
		d.stats.Rejected++
		d.reset()
		return nil
	}
	d.commit()
	d.stats.Written++
	if d.rows >= d.cfg.MaxRows {
		return d.flush()
	}
	return nil
}

// complete checks not_null on columns the writer never offered.
func (d *driver) complete() bool {
	for i, c := range d.cons {
		if c != nil && !d.offered[i] && c.NotNull {
			return false
		}
	}
	return true
}

func (d *driver) commit() {
	for i, v := range d.staged {
		appendValue(d.rb.Field(i), v)
	}
	d.rows++
	d.reset()
}

func (d *driver) reset() {
	clear(d.staged)
	clear(d.offered)
	d.dead = false
}

func appendValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch b := b.(type) {
	case *array.BooleanBuilder:
		b.Append(v.(bool))
	case *array.Int8Builder:
		b.Append(v.(int8))
	case *array.Int16Builder:
		b.Append(v.(int16))
	case *array.Int32Builder:
		b.Append(v.(int32))
	case *array.Int64Builder:
		b.Append(v.(int64))
	case *array.Float32Builder:
		b.Append(v.(float32))
	case *array.Float64Builder:
		b.Append(v.(float64))
	case *array.Date32Builder:
		b.Append(v.(arrow.Date32))
	case *array.TimestampBuilder:
		b.Append(v.(arrow.Timestamp))
	case *array.StringBuilder:
		b.Append(v.(string))
	default:
		b.AppendNull()
	}
}

func (d *driver) flush() error {
	if d.rows == 0 {
		return nil
	}
	rec := d.rb.NewRecord()
	defer rec.Release()
	d.rows = 0
	if d.cfg.OnBlock == nil {
		return nil
	}
	if err := d.cfg.OnBlock(rec); err != nil {
		return fmt.Errorf("columnar-sink: block: %w", err)
	}
	return nil
}

func (d *driver) Close() error {
	if d.closed || d.rb == nil {
		return nil
	}
	d.closed = true
	err := d.flush()
	d.rb.Release()
	d.rb = nil
	return err
}

func (d *driver) Stats() sink.Stats { return d.stats }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("arrow", func() sink.Adapter { return &driver{} })
}
