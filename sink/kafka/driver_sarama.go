// Package kafka publishes accepted rows as JSON to a Kafka topic.
package kafka

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"kafkasplit/sink"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
	KeyBy   string   `yaml:"key_by"`        // field used as message key

	// Producer overrides the producer built from Brokers.
	Producer sarama.SyncProducer `yaml:"-"`
}

type driver struct {
	cfg Config
	p   sarama.SyncProducer

	row   sink.JSONRow
	key   []byte
	dead  bool
	stats sink.Stats
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: expected Config, got %T", c)
	}
	if cfg.Topic == "" {
		return errors.New("kafka-sink: topic is required")
	}
	d.cfg = cfg
	if cfg.Producer != nil {
		d.p = cfg.Producer
		return nil
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true
	var err error
	d.p, err = sarama.NewSyncProducer(cfg.Brokers, sc)
	return err
}

func (d *driver) OfferValue(field string, row int, value any) bool {
	if d.dead || row != int(d.stats.Written) {
		d.dead = true
		return false
	}
	if err := d.row.Add(field, value); err != nil {
		d.dead = true
		return false
	}
	if field == d.cfg.KeyBy && value != nil {
		d.key = fmt.Append(nil, value)
	}
	return true
}

func (d *driver) WriteRows(w sink.RowWriter) error {
	if d.p == nil {
		return errors.New("kafka-sink: not configured")
	}
	d.row.Reset()
	d.key, d.dead = nil, false
	n, err := w(d, int(d.stats.Written))
	if err != nil {
		return err
	}
	if n != 1 || d.dead {
		d.stats.Rejected++
		return nil
	}
	msg := &sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Value: sarama.ByteEncoder(append([]byte(nil), d.row.Bytes()...)),
	}
	if d.key != nil {
		msg.Key = sarama.ByteEncoder(d.key)
	}
	if _, _, err := d.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka-sink: send to %s: %w", d.cfg.Topic, err)
	}
	d.stats.Written++
	return nil
}

func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	err := d.p.Close()
	d.p = nil
	return err
}

func (d *driver) Stats() sink.Stats { return d.stats }

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
