package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kafkasplit/internal/logging"

	"github.com/IBM/sarama"
)

// partitionStream is the part of sarama.PartitionConsumer the driver reads.
type partitionStream interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type offsetSource interface {
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
}

var errNotAssigned = errors.New("partition not assigned")

// SaramaDriver reads one partition through a plain sarama.Consumer. It never
// creates a consumer group, so nothing is committed on the broker.
type SaramaDriver struct {
	cfg  Config
	cl   sarama.Client
	cons sarama.Consumer

	open    func(tp TopicPartition, offset int64) (partitionStream, error)
	offsets offsetSource

	tp       TopicPartition
	assigned bool
	offset   int64
	seeked   bool
	pc       partitionStream
}

func init() { Register("sarama", func() Driver { return &SaramaDriver{} }) }

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg = config

	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.ClientID = config.ClientID
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = false
	if config.Poll.Timeout > 0 && config.Poll.Timeout < sc.Consumer.MaxWaitTime {
		sc.Consumer.MaxWaitTime = config.Poll.Timeout
	}
	if config.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(config.TLS)
		if err != nil {
			return fmt.Errorf("tls config: %w", err)
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}
	switch config.SASL.Mechanism {
	case "":
	case "PLAIN":
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASL.User, config.SASL.Pass
	default:
		return fmt.Errorf("sarama-driver: sasl mechanism %q not supported (use the kgo driver)", config.SASL.Mechanism)
	}

	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	if d.cons, err = sarama.NewConsumerFromClient(d.cl); err != nil {
		return err
	}
	d.offsets = d.cl
	d.open = func(tp TopicPartition, offset int64) (partitionStream, error) {
		return d.cons.ConsumePartition(tp.Topic, tp.Partition, offset)
	}
	return nil
}

func (d *SaramaDriver) Assign(partitions ...TopicPartition) error {
	if len(partitions) != 1 {
		return fmt.Errorf("sarama-driver: exactly one partition per consumer, got %d", len(partitions))
	}
	if err := d.closeStream(); err != nil {
		return err
	}
	d.tp, d.assigned, d.seeked = partitions[0], true, false
	return nil
}

func (d *SaramaDriver) Seek(tp TopicPartition, offset int64) error {
	if !d.assigned || tp != d.tp {
		return fmt.Errorf("sarama-driver: seek %s: %w", tp, errNotAssigned)
	}
	if err := d.closeStream(); err != nil {
		return err
	}
	d.offset, d.seeked = offset, true
	return nil
}

func (d *SaramaDriver) EndOffsets(_ context.Context, partitions ...TopicPartition) (map[TopicPartition]int64, error) {
	out := make(map[TopicPartition]int64, len(partitions))
	for _, tp := range partitions {
		off, err := d.offsets.GetOffset(tp.Topic, tp.Partition, sarama.OffsetNewest)
		if err != nil {
			return nil, fmt.Errorf("sarama-driver: end offset %s: %w", tp, err)
		}
		out[tp] = off
	}
	return out, nil
}

// Poll waits up to timeout for the first message, then drains whatever the
// partition consumer already buffered, up to Poll.MaxRecords.
func (d *SaramaDriver) Poll(ctx context.Context, timeout time.Duration) ([]*Message, error) {
	if !d.assigned || !d.seeked {
		return nil, fmt.Errorf("sarama-driver: poll: %w", errNotAssigned)
	}
	if d.pc == nil {
		pc, err := d.open(d.tp, d.offset)
		if err != nil {
			return nil, fmt.Errorf("sarama-driver: consume %s@%d: %w", d.tp, d.offset, err)
		}
		d.pc = pc
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var batch []*Message
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case cerr := <-d.pc.Errors():
		return nil, fmt.Errorf("sarama-driver: %s: %w", d.tp, cerr.Err)
	case msg, ok := <-d.pc.Messages():
		if !ok {
			return nil, fmt.Errorf("sarama-driver: %s: partition consumer closed", d.tp)
		}
		batch = append(batch, fromSarama(msg))
	}

	limit := d.cfg.Poll.MaxRecords
drain:
	for limit <= 0 || len(batch) < limit {
		select {
		case msg, ok := <-d.pc.Messages():
			if !ok {
				break drain
			}
			batch = append(batch, fromSarama(msg))
		default:
			break drain
		}
	}
	return d.advance(batch), nil
}

func (d *SaramaDriver) advance(batch []*Message) []*Message {
	if n := len(batch); n > 0 {
		d.offset = batch[n-1].Offset + 1
	}
	return batch
}

func (d *SaramaDriver) Close() error {
	errs := []error{d.closeStream()}
	if d.cons != nil {
		errs = append(errs, d.cons.Close())
		d.cons = nil
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	d.cl = nil
	return errors.Join(errs...)
}

func (d *SaramaDriver) closeStream() error {
	if d.pc == nil {
		return nil
	}
	err := d.pc.Close()
	d.pc = nil
	if err != nil {
		logging.L().Warn("sarama-driver: partition consumer close", "partition", d.tp.String(), "err", err)
	}
	return err
}

func fromSarama(m *sarama.ConsumerMessage) *Message {
	return &Message{
		TopicPartition: TopicPartition{Topic: m.Topic, Partition: m.Partition},
		Offset:         m.Offset,
		Key:            m.Key,
		Value:          m.Value,
		Timestamp:      m.Timestamp,
		Headers:        toHeaderMap(m.Headers),
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
