package handler

import (
	"context"
	"errors"
	"time"

	"kafkasplit/internal/schema"
	"kafkasplit/sink"
	"kafkasplit/source/kafka"
)

// step is one scripted Poll result. A nil hook returns offsets as records.
type step struct {
	offsets []int64
	err     error
	hook    func(ctx context.Context) error
}

type fakeConsumer struct {
	script []step
	end    int64
	endErr error

	assigned []kafka.TopicPartition
	seekedTo int64
	polls    int
	closed   int
	closeErr error
}

func (c *fakeConsumer) Assign(tps ...kafka.TopicPartition) error {
	c.assigned = append(c.assigned, tps...)
	return nil
}

func (c *fakeConsumer) Seek(_ kafka.TopicPartition, offset int64) error {
	c.seekedTo = offset
	return nil
}

func (c *fakeConsumer) EndOffsets(_ context.Context, tps ...kafka.TopicPartition) (map[kafka.TopicPartition]int64, error) {
	if c.endErr != nil {
		return nil, c.endErr
	}
	out := make(map[kafka.TopicPartition]int64, len(tps))
	for _, tp := range tps {
		out[tp] = c.end
	}
	return out, nil
}

func (c *fakeConsumer) Poll(ctx context.Context, _ time.Duration) ([]kafka.Record, error) {
	c.polls++
	if len(c.script) == 0 {
		return nil, nil
	}
	s := c.script[0]
	c.script = c.script[1:]
	if s.hook != nil {
		if err := s.hook(ctx); err != nil {
			return nil, err
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	recs := make([]kafka.Record, 0, len(s.offsets))
	for _, off := range s.offsets {
		recs = append(recs, record(off))
	}
	return recs, nil
}

func (c *fakeConsumer) Close() error {
	c.closed++
	return c.closeErr
}

func record(off int64) kafka.Record {
	return kafka.Record{
		TopicPartition: kafka.TopicPartition{Topic: "t", Partition: 0},
		Offset:         off,
		Fields: []schema.Value{
			{Name: "offset", Value: off},
			{Name: "name", Value: "row"},
		},
	}
}

// logScript serves offsets in batches of n starting at from, then nothing.
func logScript(offsets []int64, from int64, n int) []step {
	var live []int64
	for _, off := range offsets {
		if off >= from {
			live = append(live, off)
		}
	}
	var out []step
	for len(live) > 0 {
		k := min(n, len(live))
		out = append(out, step{offsets: live[:k]})
		live = live[k:]
	}
	return out
}

type fakeSink struct {
	reject  func(field string, v any) bool
	err     error
	offered []string
	rows    [][]schema.Value
	current []schema.Value
	dead    bool
}

func (s *fakeSink) Configure(any) error { return nil }
func (s *fakeSink) Close() error        { return nil }

func (s *fakeSink) OfferValue(field string, row int, v any) bool {
	s.offered = append(s.offered, field)
	if row != len(s.rows) || (s.reject != nil && s.reject(field, v)) {
		s.dead = true
		return false
	}
	s.current = append(s.current, schema.Value{Name: field, Value: v})
	return true
}

func (s *fakeSink) WriteRows(w sink.RowWriter) error {
	if s.err != nil {
		return s.err
	}
	s.current, s.dead = nil, false
	n, err := w(s, len(s.rows))
	if err != nil {
		return err
	}
	if n == 1 && !s.dead {
		s.rows = append(s.rows, s.current)
	}
	return nil
}

func (s *fakeSink) offsets() []int64 {
	out := make([]int64, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r[0].Value.(int64))
	}
	return out
}

var errBroker = errors.New("broker unreachable")

func topicT() schema.Topic {
	return schema.Topic{
		Name:       "t",
		DataFormat: schema.FormatJSON,
		Fields: []schema.Field{
			{Name: "offset", Type: schema.TypeBigInt},
			{Name: "name", Type: schema.TypeVarchar},
		},
	}
}

func request(start, end int64) ReadRequest {
	sp := SplitParam{Topic: "t", Partition: 0, StartOffset: start, EndOffset: end}
	return ReadRequest{Split: Split{Properties: sp.Properties()}, Schema: topicT()}
}

func newHandler(c *fakeConsumer, opts Options) (*RecordHandler, *int) {
	opened := 0
	h := NewRecordHandler(func(schema.Topic) (kafka.Consumer, error) {
		opened++
		return c, nil
	}, opts)
	return h, &opened
}
