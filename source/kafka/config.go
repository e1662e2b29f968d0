package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "KAFKASPLIT_KAFKA__"

// EmptyPollMode selects how empty polls count toward exhausting a split.
type EmptyPollMode string

const (
	EmptyPollCumulative  EmptyPollMode = "cumulative"  // every empty poll of the split counts
	EmptyPollConsecutive EmptyPollMode = "consecutive" // a non-empty poll resets the count
)

type TLSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	CAFile     string `koanf:"ca_file"`
	CertFile   string `koanf:"cert_file"` // mTLS
	KeyFile    string `koanf:"key_file"`  // mTLS
	SkipVerify bool   `koanf:"skip_verify"`
}

type SASLConfig struct {
	Mechanism string `koanf:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	User      string `koanf:"user"`
	Pass      string `koanf:"pass"`
}

type PollConfig struct {
	Timeout    time.Duration `koanf:"timeout"`     // wait budget of one poll
	MaxRecords int           `koanf:"max_records"` // batch cap per poll
	MaxEmpty   int           `koanf:"max_empty"`   // empty polls before a split is exhausted
	EmptyMode  EmptyPollMode `koanf:"empty_mode"`
}

type Config struct {
	Driver   string     `koanf:"driver"` // sarama|kgo
	Brokers  []string   `koanf:"brokers"`
	ClientID string     `koanf:"client_id"`
	Version  string     `koanf:"version"` // sarama only
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`
	Poll     PollConfig `koanf:"poll"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// LoadConfig merges YAML (if present) with env-vars
// (prefix `KAFKASPLIT_KAFKA__`, delimiter `__`, e.g. KAFKASPLIT_KAFKA__POLL__TIMEOUT).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	// schema version check (only when YAML is present)
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	if err := k.Load(env.Provider(envPrefix, "__", envKey), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, envPrefix))
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.Driver == "" {
		c.Driver = "sarama"
	}
	if c.ClientID == "" {
		c.ClientID = "kafkasplit"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = time.Second
	}
	if c.Poll.MaxRecords == 0 {
		c.Poll.MaxRecords = 500
	}
	if c.Poll.MaxEmpty == 0 {
		c.Poll.MaxEmpty = 3
	}
	if c.Poll.EmptyMode == "" {
		c.Poll.EmptyMode = EmptyPollCumulative
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error

	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("brokers are required"))
	}
	switch c.SASL.Mechanism {
	case "":
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		if c.SASL.User == "" || c.SASL.Pass == "" {
			errs = append(errs, errors.New("sasl.user and sasl.pass are required when sasl.mechanism is set"))
		}
	default:
		errs = append(errs, fmt.Errorf("sasl.mechanism %q is not valid (must be PLAIN, SCRAM-SHA-256, or SCRAM-SHA-512)", c.SASL.Mechanism))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file must be set together"))
	}
	if c.Poll.Timeout < 0 {
		errs = append(errs, errors.New("poll.timeout must be positive"))
	}
	if c.Poll.MaxEmpty < 0 {
		errs = append(errs, errors.New("poll.max_empty must be positive"))
	}
	if c.Poll.EmptyMode != EmptyPollCumulative && c.Poll.EmptyMode != EmptyPollConsecutive {
		errs = append(errs, fmt.Errorf("poll.empty_mode %q is not valid (must be cumulative or consecutive)", c.Poll.EmptyMode))
	}
	return errors.Join(errs...)
}
