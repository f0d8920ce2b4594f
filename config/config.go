package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Capture    CaptureConfig    `yaml:"capture"`
	Detector   DetectorConfig   `yaml:"detector"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Rooms      []RoomConfig     `yaml:"rooms"`
}

// ServerConfig holds the control-plane server configuration.
type ServerConfig struct {
	BindAddress     string  `yaml:"bind_address"`
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the baseline store connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "sqlite" or "postgres"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// CaptureConfig holds settings for the image capture collaborator.
type CaptureConfig struct {
	Dir            string        `yaml:"dir"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	DelaySeconds   int           `yaml:"delay_seconds"`
	Timeout        time.Duration `yaml:"-"`
	Delay          time.Duration `yaml:"-"`
}

// DetectorConfig holds the connect-retry policy shared by all detectors.
type DetectorConfig struct {
	RetryMinSeconds int           `yaml:"retry_min_seconds"`
	RetryMaxSeconds int           `yaml:"retry_max_seconds"`
	RetryMin        time.Duration `yaml:"-"`
	RetryMax        time.Duration `yaml:"-"`
}

// MQTTConfig holds the broker connection used by MQTT-backed sensor sessions.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the analysis worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// RoomConfig declares one monitored room and the devices assigned to it.
type RoomConfig struct {
	ID                  string                `yaml:"id"`
	Name                string                `yaml:"name"`
	InitialState        string                `yaml:"initial_state"`
	CaptureDelaySeconds int                   `yaml:"capture_delay_seconds"`
	Cameras             []CameraConfig        `yaml:"cameras"`
	Detectors           []PersonSensorConfig  `yaml:"detectors"`
}

// CameraConfig declares one camera device.
type CameraConfig struct {
	Name                  string  `yaml:"name"`
	IP                    string  `yaml:"ip"`
	Port                  int     `yaml:"port"`
	MAC                   string  `yaml:"mac"`
	URL                   string  `yaml:"url"`
	PollIntervalSeconds   float64 `yaml:"poll_interval_seconds"`
	OutputIntervalSeconds float64 `yaml:"output_interval_seconds"`
}

// PersonSensorConfig declares one presence-sensing device.
type PersonSensorConfig struct {
	Name                    string          `yaml:"name"`
	Host                    string          `yaml:"host"`
	Port                    int             `yaml:"port"`
	EncryptionKey           string          `yaml:"encryption_key"`
	HeartbeatTimeoutSeconds float64         `yaml:"heartbeat_timeout_seconds"`
	Channels                []ChannelConfig `yaml:"channels"`
}

// ChannelConfig maps one sensor channel to its broker topic.
type ChannelConfig struct {
	Key   int    `yaml:"key"`
	Name  string `yaml:"name"`
	Topic string `yaml:"topic"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = "127.0.0.1"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "gel_controller.db"
	}

	if cfg.Capture.Dir == "" {
		cfg.Capture.Dir = "captures"
	}
	if cfg.Capture.TimeoutSeconds <= 0 {
		cfg.Capture.TimeoutSeconds = 10
	}
	if cfg.Capture.DelaySeconds <= 0 {
		cfg.Capture.DelaySeconds = 30
	}
	cfg.Capture.Timeout = time.Duration(cfg.Capture.TimeoutSeconds) * time.Second
	cfg.Capture.Delay = time.Duration(cfg.Capture.DelaySeconds) * time.Second

	if cfg.Detector.RetryMinSeconds <= 0 {
		cfg.Detector.RetryMinSeconds = 1
	}
	if cfg.Detector.RetryMaxSeconds <= 0 {
		cfg.Detector.RetryMaxSeconds = 60
	}
	cfg.Detector.RetryMin = time.Duration(cfg.Detector.RetryMinSeconds) * time.Second
	cfg.Detector.RetryMax = time.Duration(cfg.Detector.RetryMaxSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	for i := range cfg.Rooms {
		room := &cfg.Rooms[i]
		if room.InitialState == "" {
			room.InitialState = "empty"
		}
		if room.CaptureDelaySeconds <= 0 {
			room.CaptureDelaySeconds = cfg.Capture.DelaySeconds
		}
		for j := range room.Cameras {
			cam := &room.Cameras[j]
			if cam.PollIntervalSeconds <= 0 {
				cam.PollIntervalSeconds = 10
			}
			if cam.OutputIntervalSeconds <= 0 {
				cam.OutputIntervalSeconds = 10
			}
		}
		for j := range room.Detectors {
			det := &room.Detectors[j]
			if det.Port <= 0 {
				det.Port = 6053
			}
			if det.HeartbeatTimeoutSeconds <= 0 {
				det.HeartbeatTimeoutSeconds = 10
			}
		}
	}

	return &cfg, nil
}
