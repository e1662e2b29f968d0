package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// kgoClient abstracts the franz-go client methods used by KgoDriver for testing.
type kgoClient interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	SetOffsets(setOffsets map[string]map[int32]kgo.EpochOffset)
	Close()
}

type offsetLister interface {
	ListEndOffsets(ctx context.Context, topics ...string) (kadm.ListedOffsets, error)
}

// KgoDriver reads one partition with direct (groupless) franz-go consuming.
// The client is created on the first Seek, pinned to that partition.
type KgoDriver struct {
	cfg       Config
	opts      []kgo.Opt
	newClient func(opts ...kgo.Opt) (kgoClient, offsetLister, error)

	cl  kgoClient
	adm offsetLister

	tp       TopicPartition
	assigned bool
}

func init() { Register("kgo", func() Driver { return &KgoDriver{} }) }

func (d *KgoDriver) Configure(config Config) error {
	d.cfg = config
	opts, err := clientOptions(config)
	if err != nil {
		return err
	}
	d.opts = opts
	if d.newClient == nil {
		d.newClient = func(opts ...kgo.Opt) (kgoClient, offsetLister, error) {
			cl, err := kgo.NewClient(opts...)
			if err != nil {
				return nil, nil, err
			}
			return cl, kadm.NewClient(cl), nil
		}
	}
	return nil
}

// clientOptions returns the kgo.Opt slice for the given configuration.
func clientOptions(cfg Config) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
	}
	if cfg.Poll.Timeout > 0 {
		opts = append(opts, kgo.FetchMaxWait(cfg.Poll.Timeout))
	}

	if cfg.SASL.Mechanism != "" {
		mech, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, fmt.Errorf("sasl config: %w", err)
		}
		opts = append(opts, kgo.SASL(mech))
	}

	if cfg.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("tls config: %w", err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	return opts, nil
}

func saslMechanism(auth SASLConfig) (sasl.Mechanism, error) {
	switch auth.Mechanism {
	case "PLAIN":
		return plain.Auth{User: auth.User, Pass: auth.Pass}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: auth.User, Pass: auth.Pass}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: auth.User, Pass: auth.Pass}.AsSha512Mechanism(), nil
	}
	return nil, fmt.Errorf("unsupported SASL mechanism: %s", auth.Mechanism)
}

func (d *KgoDriver) Assign(partitions ...TopicPartition) error {
	if len(partitions) != 1 {
		return fmt.Errorf("kgo-driver: exactly one partition per consumer, got %d", len(partitions))
	}
	if d.cl != nil && partitions[0] != d.tp {
		d.cl.Close()
		d.cl, d.adm = nil, nil
	}
	d.tp, d.assigned = partitions[0], true
	return nil
}

func (d *KgoDriver) Seek(tp TopicPartition, offset int64) error {
	if !d.assigned || tp != d.tp {
		return fmt.Errorf("kgo-driver: seek %s: %w", tp, errNotAssigned)
	}
	if d.cl != nil {
		d.cl.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			tp.Topic: {tp.Partition: {Epoch: -1, Offset: offset}},
		})
		return nil
	}
	opts := append([]kgo.Opt{}, d.opts...)
	opts = append(opts, kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
		tp.Topic: {tp.Partition: kgo.NewOffset().At(offset)},
	}))
	cl, adm, err := d.newClient(opts...)
	if err != nil {
		return fmt.Errorf("kgo-driver: client: %w", err)
	}
	d.cl, d.adm = cl, adm
	return nil
}

func (d *KgoDriver) EndOffsets(ctx context.Context, partitions ...TopicPartition) (map[TopicPartition]int64, error) {
	if d.adm == nil {
		return nil, fmt.Errorf("kgo-driver: end offsets: %w", errNotAssigned)
	}
	out := make(map[TopicPartition]int64, len(partitions))
	for _, tp := range partitions {
		listed, err := d.adm.ListEndOffsets(ctx, tp.Topic)
		if err != nil {
			return nil, fmt.Errorf("kgo-driver: end offsets %s: %w", tp.Topic, err)
		}
		lo, ok := listed.Lookup(tp.Topic, tp.Partition)
		if !ok {
			return nil, fmt.Errorf("kgo-driver: end offset %s: partition not found", tp)
		}
		if lo.Err != nil {
			return nil, fmt.Errorf("kgo-driver: end offset %s: %w", tp, lo.Err)
		}
		out[tp] = lo.Offset
	}
	return out, nil
}

func (d *KgoDriver) Poll(ctx context.Context, timeout time.Duration) ([]*Message, error) {
	if d.cl == nil {
		return nil, fmt.Errorf("kgo-driver: poll: %w", errNotAssigned)
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fetches := d.cl.PollRecords(pctx, d.cfg.Poll.MaxRecords)
	if fetches.IsClientClosed() {
		return nil, errors.New("kgo-driver: client closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error
	fetches.EachError(func(topic string, partition int32, err error) {
		// the poll deadline surfaces as a fetch error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		errs = append(errs, fmt.Errorf("%s[%d]: %w", topic, partition, err))
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("kgo-driver: fetch: %w", errors.Join(errs...))
	}

	out := make([]*Message, 0, fetches.NumRecords())
	fetches.EachRecord(func(r *kgo.Record) {
		out = append(out, fromKgo(r))
	})
	return out, nil
}

func (d *KgoDriver) Close() error {
	if d.cl != nil {
		d.cl.Close()
	}
	d.cl, d.adm = nil, nil
	return nil
}

func fromKgo(r *kgo.Record) *Message {
	m := &Message{
		TopicPartition: TopicPartition{Topic: r.Topic, Partition: r.Partition},
		Offset:         r.Offset,
		Key:            r.Key,
		Value:          r.Value,
		Timestamp:      r.Timestamp,
	}
	if len(r.Headers) > 0 {
		m.Headers = make(map[string][]byte, len(r.Headers))
		for _, h := range r.Headers {
			m.Headers[h.Key] = h.Value
		}
	}
	return m
}
