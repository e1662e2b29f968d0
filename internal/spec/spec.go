package spec

import "kafkasplit/internal/schema"

type SinkSpec struct {
	Kind         string        `yaml:"kind"`          // arrow|stdout|kafka
	MaxRows      int           `yaml:"max_rows"`      // rows per arrow block
	PrintCounter bool          `yaml:"print_counter"` // stdout only
	Kafka        KafkaSinkSpec `yaml:"kafka"`
}

// KafkaSinkSpec publishes accepted rows as JSON to a topic.
type KafkaSinkSpec struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"`
	KeyBy   string   `yaml:"key_by"`
}

type serverSection struct {
	GRPCPort      int `yaml:"grpc_port"`
	MetricsPort   int `yaml:"metrics_port"`   // 0 = disabled
	MaxConcurrent int `yaml:"max_concurrent"` // split reads in flight; 0 = unlimited
}

type logSection struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// File is the engine spec: where records come from, how topics decode and
// where rows go.
type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`   // kafka
		Driver string `yaml:"driver"` // overrides the source config's driver
		Config string `yaml:"config"` // path, relative to this file
	} `yaml:"source"`

	Sink   SinkSpec       `yaml:"sink"`
	Topics []schema.Topic `yaml:"topics"`
	Server serverSection  `yaml:"server"`
	Log    logSection     `yaml:"log"`
}
