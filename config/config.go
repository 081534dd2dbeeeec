package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Log     LogConfig      `mapstructure:"log"`
	DB      DBConfig       `mapstructure:"db"`
	Baidu   BaiduConfig    `mapstructure:"baidu"`
	MQTT    MQTTConfig     `mapstructure:"mqtt"`
	Sync    SyncConfig     `mapstructure:"sync"`
	Cameras []CameraConfig `mapstructure:"cameras"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	MatchDir string `mapstructure:"match_dir"` // directory where matched frames are written
	MatchURL string `mapstructure:"match_url"` // URL path the match directory is served under
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds database settings.
type DBConfig struct {
	File string `mapstructure:"file"` // path to the SQLite database file
}

// BaiduConfig holds the Baidu cloud face API settings.
type BaiduConfig struct {
	APIKey         string `mapstructure:"api_key"`
	SecretKey      string `mapstructure:"secret_key"`
	TokenURL       string `mapstructure:"token_url"`
	APIURL         string `mapstructure:"api_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c BaiduConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MQTTConfig holds settings for the MQTT client connection.
type MQTTConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Broker        string              `mapstructure:"broker"`
	Port          int                 `mapstructure:"port"`
	Username      string              `mapstructure:"username"`
	Password      string              `mapstructure:"password"`
	ClientID      string              `mapstructure:"client_id"`
	TopicPrefix   string              `mapstructure:"topic_prefix"`
	HomeAssistant HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig holds settings for the Home Assistant MQTT discovery.
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
}

// SyncConfig holds settings for the group/person store synchronization.
type SyncConfig struct {
	// IntervalMinutes > 0 enables periodic re-sync after the startup sync.
	// 0 keeps the store as populated once at startup.
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// CameraConfig describes one camera whose frames are submitted for face search.
type CameraConfig struct {
	Name            string  `mapstructure:"name"`
	SnapshotURL     string  `mapstructure:"snapshot_url"`
	Group           string  `mapstructure:"group"`
	Confidence      float64 `mapstructure:"confidence"`
	SavePath        string  `mapstructure:"save_path"`
	IntervalSeconds int     `mapstructure:"interval_seconds"` // 0 disables polling; frames arrive via the API only
}

// Load reads the configuration from file, environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Environment variables override file values
	v.AutomaticEnv()
	v.SetEnvPrefix("BAIDU_FACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the rest of the application relies on.
// Credentials and the per-camera fields are validated here so the core
// components can assume they are present.
func (c *Config) Validate() error {
	if c.Baidu.APIKey == "" {
		return fmt.Errorf("baidu.api_key is required")
	}
	if c.Baidu.SecretKey == "" {
		return fmt.Errorf("baidu.secret_key is required")
	}

	seen := make(map[string]bool)
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("cameras[%d]: name is required", i)
		}
		if seen[cam.Name] {
			return fmt.Errorf("cameras[%d]: duplicate camera name %q", i, cam.Name)
		}
		seen[cam.Name] = true
		if cam.Group == "" {
			return fmt.Errorf("camera %q: group is required", cam.Name)
		}
		if cam.Confidence <= 0 || cam.Confidence > 100 {
			return fmt.Errorf("camera %q: confidence must be in (0, 100]", cam.Name)
		}
		if cam.IntervalSeconds > 0 && cam.SnapshotURL == "" {
			return fmt.Errorf("camera %q: snapshot_url is required when polling is enabled", cam.Name)
		}
	}
	return nil
}

// SaveDir returns the directory matched frames of a camera are written to.
func (c *Config) SaveDir(cam CameraConfig) string {
	if cam.SavePath != "" {
		return cam.SavePath
	}
	return c.Server.MatchDir
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.match_dir", "/data/matches")
	v.SetDefault("server.match_url", "/matches")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// DB defaults
	v.SetDefault("db.file", "/data/baidu-face.db")

	// Baidu API defaults
	v.SetDefault("baidu.token_url", "https://aip.baidubce.com/oauth/2.0/token")
	v.SetDefault("baidu.api_url", "https://aip.baidubce.com/rest/2.0/face/v3")
	v.SetDefault("baidu.timeout_seconds", 10)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "baidu-face-go")
	v.SetDefault("mqtt.topic_prefix", "baidu-face")
	v.SetDefault("mqtt.homeassistant.enabled", false)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")

	// Sync defaults: one startup sync only
	v.SetDefault("sync.interval_minutes", 0)
}

// ensureDirectories creates the directories the service writes to.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if err := os.MkdirAll(cfg.Server.MatchDir, 0755); err != nil {
		return fmt.Errorf("failed to create match directory: %w", err)
	}
	return nil
}
