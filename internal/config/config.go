package config

import (
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level bridge configuration.
type Config struct {
	Logger     LogConf       // Logger - logging configuration.
	ArtNet     ArtNetConf    // ArtNet - Art-Net listener configuration.
	WiZ        WiZConf       // WiZ - bulb control transport configuration.
	BulbStore  BulbStoreConf // BulbStore - where the bridge reads bulb records from.
	MQTT       MQTTConf      // MQTT - optional reload-notification/stats transport.
	Discovery  DiscoveryConf // Discovery - broadcast discovery defaults.
	Supervisor SupervisorConf
}

// LogConf configures the logger.
type LogConf struct {
	Level string `toml:"log-level"`
}

// ArtNetConf configures the Art-Net ingress socket.
type ArtNetConf struct {
	ListenPort int    `toml:"listen-port"` // ListenPort - UDP port to receive ArtDmx on (default 6454).
	Universe   uint16 `toml:"universe"`    // Universe - the only universe processed; all others are dropped.
}

// WiZConf configures the bulb control socket.
type WiZConf struct {
	ControlPort int `toml:"control-port"` // ControlPort - UDP port bulbs listen on (default 38899).
}

// BulbStoreConf configures how the bridge loads its bulb list.
type BulbStoreConf struct {
	BaseURL      string        `toml:"base-url"`     // BaseURL - HTTP record-store base URL, e.g. http://localhost:8080.
	SeedPath     string        `toml:"seed-path"`     // SeedPath - optional local YAML bootstrap file.
	ReloadPeriod time.Duration `toml:"reload-period"` // ReloadPeriod - config reload tick (default 60s).
	HTTPTimeout  time.Duration `toml:"http-timeout"`
}

// MQTTConf configures the optional notify/telemetry transport.
type MQTTConf struct {
	Enabled     bool   `toml:"enabled"`
	ClientID    string `toml:"clientID"`
	Schema      string `toml:"schema"`
	Host        string `toml:"server"`
	Port        string `toml:"port"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	ReloadTopic string `toml:"reload-topic"` // ReloadTopic - publish here to force an immediate config reload.
	StatsTopic  string `toml:"stats-topic"`  // StatsTopic - bridge publishes stats snapshots here every 30s.
}

// DiscoveryConf configures broadcast bulb discovery defaults.
type DiscoveryConf struct {
	Timeout time.Duration `toml:"timeout"` // Timeout - collection window (default 3s).
}

// SupervisorConf configures restart backoff.
type SupervisorConf struct {
	BaseDelay time.Duration `toml:"base-delay"` // BaseDelay - delay after first crash (default 1s).
	MaxDelay  time.Duration `toml:"max-delay"`  // MaxDelay - backoff cap (default 60s).
	ResetIdle time.Duration `toml:"reset-idle"` // ResetIdle - time since last restart after which the counter resets (default 60s).
}

// NewConfig loads and decodes the TOML configuration file at path,
// filling in defaults for anything left unset.
func NewConfig(path string) (*Config, error) {
	cfg := Config{
		Logger:    LogConf{Level: "info"},
		ArtNet:    ArtNetConf{ListenPort: 6454, Universe: 0},
		WiZ:       WiZConf{ControlPort: 38899},
		BulbStore: BulbStoreConf{ReloadPeriod: 60 * time.Second, HTTPTimeout: 2 * time.Second},
		MQTT:      MQTTConf{ReloadTopic: "wizbridge/bulbs/changed", StatsTopic: "wizbridge/stats"},
		Discovery: DiscoveryConf{Timeout: 3 * time.Second},
		Supervisor: SupervisorConf{
			BaseDelay: time.Second,
			MaxDelay:  60 * time.Second,
			ResetIdle: 60 * time.Second,
		},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}
