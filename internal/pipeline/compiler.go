package pipeline

import (
	"fmt"

	"kafkasplit/internal/config"
	"kafkasplit/internal/handler"
	"kafkasplit/internal/logging"
	"kafkasplit/internal/schema"
	"kafkasplit/internal/telemetry"
	"kafkasplit/source/kafka"
)

// Compile loads the engine spec at path and its source config and returns
// a Runner ready to read splits. No broker connection is made until a split
// is read.
func Compile(path string, m *telemetry.Metrics) (*Runner, error) {
	cfg, confPath, err := config.LoadEngineSpec(path)
	if err != nil {
		return nil, err
	}
	kc, err := config.LoadKafkaConfig(confPath)
	if err != nil {
		return nil, fmt.Errorf("source config: %w", err)
	}
	if cfg.Source.Driver != "" {
		kc.Driver = cfg.Source.Driver
	}
	if _, err := kafka.NewDriver(kc.Driver); err != nil {
		return nil, err
	}

	cat, err := schema.NewCatalog(cfg.Topics)
	if err != nil {
		return nil, fmt.Errorf("topics: %w", err)
	}

	h := handler.NewRecordHandler(
		func(t schema.Topic) (kafka.Consumer, error) { return kafka.Open(kc, t) },
		handler.Options{
			PollTimeout:   kc.Poll.Timeout,
			MaxEmptyPolls: kc.Poll.MaxEmpty,
			EmptyMode:     kc.Poll.EmptyMode,
			Metrics:       m,
		},
	)
	logging.For("pipeline").Info("compiled",
		"spec", path, "driver", kc.Driver, "brokers", kc.Brokers,
		"topics", len(cat), "sink", cfg.Sink.Kind)

	if cfg.Sink.Kind == "kafka" && len(cfg.Sink.Kafka.Brokers) == 0 {
		cfg.Sink.Kafka.Brokers = kc.Brokers
	}
	r := NewRunner(h, cat, cfg.Sink)
	r.spec = cfg
	return r, nil
}
