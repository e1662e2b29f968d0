package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kafkasplit/internal/schema"
)

type decodingConsumer struct {
	drv Driver
	dec schema.Decoder
}

// NewConsumer decodes every record polled from d with dec.
func NewConsumer(d Driver, dec schema.Decoder) Consumer {
	return &decodingConsumer{drv: d, dec: dec}
}

// Open configures the named driver from cfg and binds it to the topic's
// decoder. The returned consumer owns the driver.
func Open(cfg Config, topic schema.Topic) (Consumer, error) {
	dec, err := schema.NewDecoder(topic)
	if err != nil {
		return nil, err
	}
	drv, err := NewDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if err := drv.Configure(cfg); err != nil {
		return nil, errors.Join(fmt.Errorf("configure %s driver: %w", cfg.Driver, err), drv.Close())
	}
	return NewConsumer(drv, dec), nil
}

func (c *decodingConsumer) Assign(partitions ...TopicPartition) error {
	return c.drv.Assign(partitions...)
}

func (c *decodingConsumer) Seek(tp TopicPartition, offset int64) error {
	return c.drv.Seek(tp, offset)
}

func (c *decodingConsumer) EndOffsets(ctx context.Context, partitions ...TopicPartition) (map[TopicPartition]int64, error) {
	return c.drv.EndOffsets(ctx, partitions...)
}

func (c *decodingConsumer) Poll(ctx context.Context, timeout time.Duration) ([]Record, error) {
	msgs, err := c.drv.Poll(ctx, timeout)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		fields, err := c.dec.Decode(m.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %s@%d: %w", m.TopicPartition, m.Offset, err)
		}
		out = append(out, Record{
			TopicPartition: m.TopicPartition,
			Offset:         m.Offset,
			Key:            m.Key,
			Timestamp:      m.Timestamp,
			Fields:         fields,
		})
	}
	return out, nil
}

func (c *decodingConsumer) Close() error {
	return c.drv.Close()
}
