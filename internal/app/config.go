package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/finbot/core/config"
	coredatabase "github.com/m3rciful/finbot/core/database"
	"github.com/m3rciful/finbot/internal/rates"
)

// RatesConfig points at the CBR daily document.
type RatesConfig struct {
	URL     string        `yaml:"url" envconfig:"RATES_URL"`
	Timeout time.Duration `yaml:"timeout" envconfig:"RATES_TIMEOUT"`
}

// BroadcastConfig controls outgoing fan-out.
type BroadcastConfig struct {
	// RatesInterval enables the periodic rates broadcast when positive.
	RatesInterval time.Duration `yaml:"rates_interval" envconfig:"BROADCAST_RATES_INTERVAL"`
	QueueSize     int           `yaml:"queue_size" envconfig:"BROADCAST_QUEUE_SIZE"`
	Workers       int           `yaml:"workers" envconfig:"BROADCAST_WORKERS"`
	SendTimeout   time.Duration `yaml:"send_timeout" envconfig:"BROADCAST_SEND_TIMEOUT"`
}

// AdminConfig configures the operator HTTP endpoint. Empty Listen disables it.
type AdminConfig struct {
	Listen            string   `yaml:"listen" envconfig:"ADMIN_LISTEN"`
	Token             string   `yaml:"token" envconfig:"ADMIN_TOKEN"`
	RequestsPerMinute int      `yaml:"requests_per_minute" envconfig:"ADMIN_REQUESTS_PER_MINUTE"`
	AllowedOrigins    []string `yaml:"allowed_origins" envconfig:"ADMIN_ALLOWED_ORIGINS"`
	TrustProxy        bool     `yaml:"trust_proxy" envconfig:"ADMIN_TRUST_PROXY"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  coredatabase.Config `yaml:"database"`
	Rates     RatesConfig         `yaml:"rates"`
	Broadcast BroadcastConfig     `yaml:"broadcast"`
	Admin     AdminConfig         `yaml:"admin"`
}

// CoreConfig exposes the shared transport and logging settings.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// DatabaseEnabled reports whether a Postgres host is configured. Without one
// the bot keeps chats and operations in memory.
func (c *Config) DatabaseEnabled() bool {
	return strings.TrimSpace(c.Database.Host) != ""
}

// Load reads the YAML file at path, overlays the environment and normalizes.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if cfg.DatabaseEnabled() {
		if err := cfg.Database.Normalize(); err != nil {
			return err
		}
	}

	if strings.TrimSpace(cfg.Rates.URL) == "" {
		cfg.Rates.URL = rates.DefaultURL
	}
	if cfg.Rates.Timeout <= 0 {
		cfg.Rates.Timeout = 10 * time.Second
	}

	if cfg.Broadcast.RatesInterval < 0 {
		return fmt.Errorf("broadcast.rates_interval must be >= 0")
	}
	if cfg.Broadcast.RatesInterval > 0 && cfg.Broadcast.RatesInterval < time.Minute {
		return fmt.Errorf("broadcast.rates_interval must be at least 1m, got %s", cfg.Broadcast.RatesInterval)
	}

	if cfg.Admin.Listen != "" && strings.TrimSpace(cfg.Admin.Token) == "" {
		return fmt.Errorf("admin.token is required when admin.listen is set")
	}
	return nil
}
