package kafka

import (
	"context"
	"fmt"
	"time"

	"kafkasplit/internal/schema"
)

type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string { return fmt.Sprintf("%s[%d]", tp.Topic, tp.Partition) }

// Message is a raw record as delivered by a driver.
type Message struct {
	TopicPartition
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte
}

// Record is a Message whose value has been decoded into schema fields.
type Record struct {
	TopicPartition
	Offset    int64
	Key       []byte
	Timestamp time.Time
	Fields    []schema.Value
}

// Driver is a groupless read cursor over explicitly assigned partitions.
// Offsets are never committed; the position only moves through Seek and Poll.
type Driver interface {
	Configure(Config) error
	Assign(partitions ...TopicPartition) error
	Seek(tp TopicPartition, offset int64) error
	EndOffsets(ctx context.Context, partitions ...TopicPartition) (map[TopicPartition]int64, error)
	// Poll waits at most timeout for records. An empty batch is not an error.
	Poll(ctx context.Context, timeout time.Duration) ([]*Message, error)
	Close() error
}

// Consumer is a Driver whose records come back decoded.
type Consumer interface {
	Assign(partitions ...TopicPartition) error
	Seek(tp TopicPartition, offset int64) error
	EndOffsets(ctx context.Context, partitions ...TopicPartition) (map[TopicPartition]int64, error)
	Poll(ctx context.Context, timeout time.Duration) ([]Record, error)
	Close() error
}
