package columnar

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"kafkasplit/sink"
)

func ordersSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "status", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "placed", Type: &arrow.TimestampType{Unit: arrow.Millisecond}, Nullable: true},
	}, nil)
}

type field struct {
	name  string
	value any
}

func writer(fields ...field) sink.RowWriter {
	return func(b sink.Block, row int) (int, error) {
		for _, f := range fields {
			if !b.OfferValue(f.name, row, f.value) {
				return 0, nil
			}
		}
		return 1, nil
	}
}

type collected struct {
	ids  []int64
	rows []int64
}

func (c *collected) onBlock(rec arrow.Record) error {
	c.rows = append(c.rows, rec.NumRows())
	col := rec.Column(0).(*array.Int64)
	for i := 0; i < col.Len(); i++ {
		c.ids = append(c.ids, col.Value(i))
	}
	return nil
}

func newSink(t *testing.T, cfg Config) (sink.Adapter, *memory.CheckedAllocator) {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	cfg.Allocator = mem
	if cfg.Schema == nil {
		cfg.Schema = ordersSchema()
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, mem
}

func TestSink_CommitsCompleteRows(t *testing.T) {
	var got collected
	s, mem := newSink(t, Config{MaxRows: 2, OnBlock: got.onBlock})
	defer mem.AssertSize(t, 0)

	placed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		w := writer(field{"id", i}, field{"status", "paid"}, field{"amount", 9.5}, field{"placed", placed})
		if err := s.WriteRows(w); err != nil {
			t.Fatalf("WriteRows: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(got.rows) != 2 || got.rows[0] != 2 || got.rows[1] != 1 {
		t.Fatalf("want blocks of 2 and 1 rows, got %v", got.rows)
	}
	if len(got.ids) != 3 || got.ids[2] != 3 {
		t.Fatalf("unexpected ids %v", got.ids)
	}
	if st := s.(sink.Counter).Stats(); st.Written != 3 || st.Rejected != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSink_RejectedRowsAreDiscarded(t *testing.T) {
	var got collected
	s, mem := newSink(t, Config{
		OnBlock:     got.onBlock,
		Constraints: map[string]Constraint{"status": {In: []any{"paid"}}},
	})
	defer mem.AssertSize(t, 0)

	_ = s.WriteRows(writer(field{"id", int64(1)}, field{"status", "paid"}))
	_ = s.WriteRows(writer(field{"id", int64(2)}, field{"status", "void"})) // constraint
	_ = s.WriteRows(writer(field{"id", "three"}, field{"status", "paid"}))  // type
	_ = s.WriteRows(writer(field{"id", int64(4)}, field{"nope", 1}))        // unknown field
	_ = s.WriteRows(writer(field{"id", int64(5)}, field{"status", nil}))    // null fails "in"
	_ = s.WriteRows(writer(field{"id", int64(6)}, field{"amount", 1.0}, field{"status", "paid"}))
	_ = s.Close()

	if len(got.ids) != 2 || got.ids[0] != 1 || got.ids[1] != 6 {
		t.Fatalf("want rows 1 and 6, got %v", got.ids)
	}
	if st := s.(sink.Counter).Stats(); st.Written != 2 || st.Rejected != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSink_RejectionStopsTheRow(t *testing.T) {
	s, mem := newSink(t, Config{})
	defer mem.AssertSize(t, 0)

	var offered []string
	err := s.WriteRows(func(b sink.Block, row int) (int, error) {
		for _, f := range []field{{"id", int64(1)}, {"status", 42}, {"amount", 1.0}} {
			offered = append(offered, f.name)
			if !b.OfferValue(f.name, row, f.value) {
				return 0, nil
			}
		}
		return 1, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(offered) != 2 {
		t.Fatalf("want two fields offered, got %v", offered)
	}
	// a writer that ignores the rejection still gets its row dropped
	_ = s.WriteRows(func(b sink.Block, row int) (int, error) {
		b.OfferValue("id", row, "bad")
		return 1, nil
	})
	if st := s.(sink.Counter).Stats(); st.Written != 0 || st.Rejected != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	_ = s.Close()
}

func TestSink_WrongRowIndex(t *testing.T) {
	s, mem := newSink(t, Config{})
	defer mem.AssertSize(t, 0)
	_ = s.WriteRows(func(b sink.Block, row int) (int, error) {
		if b.OfferValue("id", row+1, int64(1)) {
			t.Error("value for a foreign row index was accepted")
		}
		return 0, nil
	})
	_ = s.Close()
}

func TestSink_NotNullOnMissingField(t *testing.T) {
	var got collected
	s, mem := newSink(t, Config{
		OnBlock:     got.onBlock,
		Constraints: map[string]Constraint{"amount": {NotNull: true}},
	})
	defer mem.AssertSize(t, 0)
	_ = s.WriteRows(writer(field{"id", int64(1)}))
	_ = s.WriteRows(writer(field{"id", int64(2)}, field{"amount", int64(3)}))
	_ = s.Close()
	if len(got.ids) != 1 || got.ids[0] != 2 {
		t.Fatalf("want only row 2, got %v", got.ids)
	}
}

func TestSink_WriterErrorAndBlockError(t *testing.T) {
	boom := errors.New("boom")
	s, mem := newSink(t, Config{MaxRows: 1, OnBlock: func(arrow.Record) error { return boom }})
	defer mem.AssertSize(t, 0)

	if err := s.WriteRows(func(sink.Block, int) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("want writer error, got %v", err)
	}
	if err := s.WriteRows(writer(field{"id", int64(1)})); !errors.Is(err, boom) {
		t.Fatalf("want block error, got %v", err)
	}
	_ = s.Close()
	if err := s.WriteRows(writer(field{"id", int64(2)})); err == nil {
		t.Fatal("expected error writing to a closed sink")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConfigure_Errors(t *testing.T) {
	d := &driver{}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("expected type error")
	}
	if err := d.Configure(Config{}); err == nil {
		t.Fatal("expected error for missing schema")
	}
	err := d.Configure(Config{Schema: ordersSchema(), Constraints: map[string]Constraint{"ghost": {NotNull: true}}})
	if err == nil {
		t.Fatal("expected error for constraint on unknown column")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := sink.NewAdapter("arrow"); err != nil {
		t.Fatal(err)
	}
}

func TestConvert(t *testing.T) {
	day := time.Date(1970, 1, 11, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		dt   arrow.DataType
		in   any
		want any
		ok   bool
	}{
		{arrow.FixedWidthTypes.Boolean, true, true, true},
		{arrow.PrimitiveTypes.Int8, int64(127), int8(127), true},
		{arrow.PrimitiveTypes.Int8, int64(128), nil, false},
		{arrow.PrimitiveTypes.Int32, int16(-5), int32(-5), true},
		{arrow.PrimitiveTypes.Int64, 2.5, nil, false},
		{arrow.PrimitiveTypes.Int64, float64(1 << 63), nil, false},
		{arrow.PrimitiveTypes.Int64, float64(-1 << 63), int64(math.MinInt64), true},
		{arrow.PrimitiveTypes.Float32, int32(2), float32(2), true},
		{arrow.FixedWidthTypes.Date32, day, arrow.Date32(10), true},
		{&arrow.TimestampType{Unit: arrow.Millisecond}, day, arrow.Timestamp(864_000_000), true},
		{&arrow.TimestampType{Unit: arrow.Second}, day, arrow.Timestamp(864_000), true},
		{arrow.BinaryTypes.String, []byte("x"), "x", true},
		{arrow.BinaryTypes.String, 1, nil, false},
	}
	for _, c := range cases {
		got, err := convert(c.dt, c.in)
		if (err == nil) != c.ok {
			t.Errorf("convert(%s, %#v): err = %v", c.dt, c.in, err)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("convert(%s, %#v) = %#v, want %#v", c.dt, c.in, got, c.want)
		}
	}
}

func TestConstraints(t *testing.T) {
	cs, err := ParseConstraints(map[string]any{
		"status": map[string]any{"in": []any{"paid", "open"}},
		"amount": map[string]any{"min": 0.0, "max": float64(100), "not_null": true},
	})
	if err != nil {
		t.Fatalf("ParseConstraints: %v", err)
	}
	status, amount := cs["status"], cs["amount"]
	if !status.Allows("open") || status.Allows("void") || status.Allows(nil) {
		t.Error("status constraint misbehaves")
	}
	if !amount.Allows(50.0) || amount.Allows(-1.0) || amount.Allows(101.0) || amount.Allows(nil) || amount.Allows("x") {
		t.Error("amount constraint misbehaves")
	}
	if !(Constraint{}).Allows(nil) {
		t.Error("empty constraint should admit null")
	}
	if !(Constraint{In: []any{float64(3)}}).Allows(int64(3)) {
		t.Error("numeric in-list should compare by value")
	}

	if _, err := ParseConstraints(map[string]any{"a": "scalar"}); err == nil {
		t.Error("expected error for non-object constraint")
	}
	if _, err := ParseConstraints(map[string]any{"a": map[string]any{"like": "x%"}}); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := ParseConstraints(map[string]any{"a": map[string]any{"min": "zero"}}); err == nil {
		t.Error("expected error for non-numeric min")
	}
}
