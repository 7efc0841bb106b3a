package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sheikh-saqib/payments-engine/internal/dispatcher"
)

const (
	defaultMode        = dispatcher.ModePool
	defaultWorkers     = 16
	defaultPrecision   = 4
	defaultLogLevel    = "info"
	defaultDropTopic   = "transaction_dropped"
	defaultLogRate     = 50
	defaultLogBurst    = 100
	defaultDotenvPath  = ".env"
	maxOutputPrecision = 28
)

type EngineConfig struct {
	Mode        dispatcher.Mode `yaml:"mode"`
	Workers     int             `yaml:"workers"`
	MailboxSize int             `yaml:"mailboxSize"`
}

type LedgerConfig struct {
	// RetainSettled bounds how many resolved or charged back deposits each
	// client keeps. Zero keeps all of them.
	RetainSettled int `yaml:"retainSettled"`
}

type OutputConfig struct {
	Precision int32 `yaml:"precision"`
}

type LogConfig struct {
	Level     string  `yaml:"level"`
	DropRate  float64 `yaml:"dropRate"`
	DropBurst int     `yaml:"dropBurst"`
}

type KafkaConfig struct {
	Brokers   []string `yaml:"brokers"`
	DropTopic string   `yaml:"dropTopic"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type Config struct {
	Engine      EngineConfig   `yaml:"engine"`
	Ledger      LedgerConfig   `yaml:"ledger"`
	Output      OutputConfig   `yaml:"output"`
	Log         LogConfig      `yaml:"log"`
	MetricsAddr string         `yaml:"metricsAddr"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Postgres    PostgresConfig `yaml:"postgres"`
}

func Default() Config {
	return Config{
		Engine: EngineConfig{
			Mode:        defaultMode,
			Workers:     defaultWorkers,
			MailboxSize: dispatcher.DefaultMailboxSize,
		},
		Output: OutputConfig{Precision: defaultPrecision},
		Log: LogConfig{
			Level:     defaultLogLevel,
			DropRate:  defaultLogRate,
			DropBurst: defaultLogBurst,
		},
		Kafka: KafkaConfig{DropTopic: defaultDropTopic},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, an optional .env file and finally the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(defaultDotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", defaultDotenvPath, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func env(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func envInt(key string, dst *int) error {
	v, ok := env(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := env("ENGINE_MODE"); ok {
		cfg.Engine.Mode = dispatcher.Mode(strings.ToLower(v))
	}
	if err := envInt("ENGINE_WORKERS", &cfg.Engine.Workers); err != nil {
		return err
	}
	if err := envInt("ENGINE_MAILBOX_SIZE", &cfg.Engine.MailboxSize); err != nil {
		return err
	}
	if err := envInt("LEDGER_RETAIN_SETTLED", &cfg.Ledger.RetainSettled); err != nil {
		return err
	}

	precision := int(cfg.Output.Precision)
	if err := envInt("OUTPUT_PRECISION", &precision); err != nil {
		return err
	}
	cfg.Output.Precision = int32(precision)

	if v, ok := env("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := env("METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := env("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := env("KAFKA_DROP_TOPIC"); ok {
		cfg.Kafka.DropTopic = v
	}
	if v, ok := env("DATABASE_DSN"); ok {
		cfg.Postgres.DSN = v
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Dispatcher() dispatcher.Config {
	return dispatcher.Config{
		Mode:        c.Engine.Mode,
		Workers:     c.Engine.Workers,
		MailboxSize: c.Engine.MailboxSize,
	}
}

func (c Config) Validate() error {
	if err := c.Dispatcher().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Ledger.RetainSettled < 0 {
		return fmt.Errorf("ledger: retainSettled must not be negative, got %d", c.Ledger.RetainSettled)
	}
	if c.Output.Precision < 0 || c.Output.Precision > maxOutputPrecision {
		return fmt.Errorf("output: precision must be between 0 and %d, got %d", maxOutputPrecision, c.Output.Precision)
	}
	return nil
}
