// Package config loads the runtime configuration: YAML file first,
// environment variables on top for the credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/andreas-glaser/ha-dessmonitor/internal/api"
)

// allowedIntervals are the poll intervals the vendor API tolerates without
// throttling the account.
var allowedIntervals = map[int]bool{60: true, 300: true, 600: true, 1800: true, 3600: true}

const defaultIntervalSeconds = 300

type Config struct {
	Account AccountConfig `yaml:"account"`
	Poll    PollConfig    `yaml:"poll"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type AccountConfig struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	CompanyKey string `yaml:"company_key"`
}

type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxWorkers      int `yaml:"max_workers"`
}

// Interval returns the poll interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// Load reads the YAML file, applies environment overrides and defaults,
// and validates the result.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	// Environment overrides, so credentials can stay out of the file.
	if v := os.Getenv("DESSMONITOR_USERNAME"); v != "" {
		cfg.Account.Username = v
	}
	if v := os.Getenv("DESSMONITOR_PASSWORD"); v != "" {
		cfg.Account.Password = v
	}
	if v := os.Getenv("DESSMONITOR_COMPANY_KEY"); v != "" {
		cfg.Account.CompanyKey = v
	}

	// Defaults
	if cfg.Account.CompanyKey == "" {
		cfg.Account.CompanyKey = api.DefaultCompanyKey
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = api.DefaultBaseURL
	}
	if cfg.Poll.IntervalSeconds == 0 {
		cfg.Poll.IntervalSeconds = defaultIntervalSeconds
	}
	if cfg.Poll.MaxWorkers <= 0 {
		cfg.Poll.MaxWorkers = 4
	}
	if cfg.Storage.Enabled && cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "data/dessmonitor.sqlite"
	}
	if cfg.MQTT.Enabled && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "dessmonitor"
	}
	if cfg.MQTT.Enabled && cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "ha-dessmonitor"
	}

	// Validation
	if cfg.Account.Username == "" {
		return Config{}, fmt.Errorf("account.username is required")
	}
	if cfg.Account.Password == "" {
		return Config{}, fmt.Errorf("account.password is required")
	}
	if !allowedIntervals[cfg.Poll.IntervalSeconds] {
		return Config{}, fmt.Errorf("poll.interval_seconds must be one of 60, 300, 600, 1800, 3600 (got %d)", cfg.Poll.IntervalSeconds)
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return Config{}, fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return cfg, nil
}
