package handler

import (
	"errors"
	"reflect"
	"testing"

	"kafkasplit/internal/schema"
	"kafkasplit/source/kafka"
)

func TestProject_AllFieldsAccepted(t *testing.T) {
	out := &fakeSink{}
	n, err := Project(out, record(7))
	if err != nil || n != 1 {
		t.Fatalf("want 1 row, got %d %v", n, err)
	}
	if len(out.rows) != 1 || !reflect.DeepEqual(out.offered, []string{"offset", "name"}) {
		t.Fatalf("rows=%v offered=%v", out.rows, out.offered)
	}
}

func TestProject_StopsAtFirstRejection(t *testing.T) {
	rec := kafka.Record{Fields: []schema.Value{
		{Name: "a", Value: 1},
		{Name: "b", Value: 2},
		{Name: "c", Value: 3},
		{Name: "d", Value: 4},
	}}
	out := &fakeSink{reject: func(field string, _ any) bool { return field == "b" }}

	n, err := Project(out, rec)
	if err != nil || n != 0 {
		t.Fatalf("want 0 rows, got %d %v", n, err)
	}
	if !reflect.DeepEqual(out.offered, []string{"a", "b"}) {
		t.Fatalf("fields after the rejection were offered: %v", out.offered)
	}
	if len(out.rows) != 0 {
		t.Fatalf("partial row kept: %v", out.rows)
	}
}

func TestProject_SinkError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Project(&fakeSink{err: boom}, record(1)); !errors.Is(err, boom) {
		t.Fatalf("want sink error, got %v", err)
	}
}
