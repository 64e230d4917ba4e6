// Package config loads runtime settings from ./config/.env or the environment.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read first; the process environment is used when it is absent.
const DefaultPath = "./config/.env"

type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" env-default:"0.0.0.0:8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-default:"*" env-separator:","`
	LogLevel       string   `env:"LOG_LEVEL" env-default:"info"`

	StoreBackend    string `env:"STORE_BACKEND" env-default:"json"`
	DataDir         string `env:"DATA_DIR" env-default:"./data"`
	StoreKey        string `env:"STORE_KEY" env-default:"flash_survey_responses"`
	StoreMaxRetries int    `env:"STORE_MAX_RETRIES" env-default:"5"`
	RedisAddr       string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" env-default:"0"`

	KafkaBrokers []string      `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" env-default:"survey.submissions"`
	KafkaTimeout time.Duration `env:"KAFKA_TIMEOUT" env-default:"1s"`

	CatalogPath         string `env:"CATALOG_PATH"`
	ExportLocale        string `env:"EXPORT_LOCALE" env-default:"en-US"`
	ExportTimezone      string `env:"EXPORT_TIMEZONE" env-default:"UTC"`
	ExportLegacyQuoting bool   `env:"EXPORT_LEGACY_QUOTING" env-default:"false"`
	ProgressTarget      int    `env:"PROGRESS_TARGET" env-default:"100"`
}

func New() (*Config, error) {
	return Load(DefaultPath)
}

// Load reads path when it exists and falls back to the environment otherwise.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := cleanenv.ReadEnv(&cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}
