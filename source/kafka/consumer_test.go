package kafka

import (
	"context"
	"strings"
	"testing"
	"time"

	"kafkasplit/internal/schema"
)

type stubDriver struct {
	batches [][]*Message
	closed  int
}

func (s *stubDriver) Configure(Config) error           { return nil }
func (s *stubDriver) Assign(...TopicPartition) error   { return nil }
func (s *stubDriver) Seek(TopicPartition, int64) error { return nil }
func (s *stubDriver) Close() error                     { s.closed++; return nil }
func (s *stubDriver) EndOffsets(context.Context, ...TopicPartition) (map[TopicPartition]int64, error) {
	return nil, nil
}
func (s *stubDriver) Poll(context.Context, time.Duration) ([]*Message, error) {
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func jsonTopic() schema.Topic {
	return schema.Topic{
		Name:       "t",
		DataFormat: schema.FormatJSON,
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeBigInt},
			{Name: "name", Type: schema.TypeVarchar},
		},
	}
}

func TestConsumer_DecodesInOrder(t *testing.T) {
	dec, err := schema.NewDecoder(jsonTopic())
	if err != nil {
		t.Fatal(err)
	}
	drv := &stubDriver{batches: [][]*Message{{
		{TopicPartition: TopicPartition{"t", 0}, Offset: 3, Value: []byte(`{"name":"a","id":1}`)},
		{TopicPartition: TopicPartition{"t", 0}, Offset: 4, Value: []byte(`{"id":2}`)},
	}}}
	c := NewConsumer(drv, dec)

	recs, err := c.Poll(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(recs) != 2 || recs[0].Offset != 3 || recs[1].Offset != 4 {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if recs[0].Fields[0].Name != "id" || recs[0].Fields[0].Value != int64(1) || recs[0].Fields[1].Value != "a" {
		t.Fatalf("unexpected fields: %+v", recs[0].Fields)
	}
	if recs[1].Fields[1].Value != nil {
		t.Fatalf("want nil for missing field, got %#v", recs[1].Fields[1].Value)
	}
	_ = c.Close()
	if drv.closed != 1 {
		t.Fatalf("driver not closed")
	}
}

func TestConsumer_DecodeErrorNamesOffset(t *testing.T) {
	dec, _ := schema.NewDecoder(jsonTopic())
	drv := &stubDriver{batches: [][]*Message{{
		{TopicPartition: TopicPartition{"t", 0}, Offset: 9, Value: []byte(`not json`)},
	}}}
	_, err := NewConsumer(drv, dec).Poll(context.Background(), time.Second)
	if err == nil || !strings.Contains(err.Error(), "t[0]@9") {
		t.Fatalf("want decode error naming t[0]@9, got %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(Config{Driver: "nope"}, jsonTopic()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	bad := jsonTopic()
	bad.DataFormat = "xml"
	if _, err := Open(Config{Driver: "sarama"}, bad); err == nil {
		t.Fatal("expected error for invalid topic schema")
	}
	_, err := Open(Config{Driver: "sarama", Version: "not-a-version"}, jsonTopic())
	if err == nil || !strings.Contains(err.Error(), "configure sarama driver") {
		t.Fatalf("want configure error, got %v", err)
	}
}

func TestDrivers(t *testing.T) {
	got := strings.Join(Drivers(), ",")
	if got != "kgo,sarama" {
		t.Fatalf("unexpected drivers: %s", got)
	}
}
