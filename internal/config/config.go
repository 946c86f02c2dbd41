package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	PortalAPI PortalAPIConfig `envPrefix:"PORTAL_API_"`
	Realtime  RealtimeConfig  `envPrefix:"REALTIME_"`
	Sync      SyncConfig      `envPrefix:"SYNC_"`
}

type ServerConfig struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

// PortalAPIConfig points at the portal backend: bulk fetch endpoints, the
// send procedure and membership queries.
type PortalAPIConfig struct {
	BaseURL string        `env:"BASE_URL,required"`
	Token   string        `env:"TOKEN"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// RealtimeConfig points at the push channel endpoint.
type RealtimeConfig struct {
	URL              string        `env:"URL,required"`
	Token            string        `env:"TOKEN"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
}

type SyncConfig struct {
	ResyncWorkers  int           `env:"RESYNC_WORKERS" envDefault:"4"`
	BackoffInitial time.Duration `env:"BACKOFF_INITIAL" envDefault:"500ms"`
	BackoffMax     time.Duration `env:"BACKOFF_MAX" envDefault:"30s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
