package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/goccy/go-yaml"

	"system-mqtt/pkg/log"
)

// PasswordSource selects where the broker password comes from.
type PasswordSource string

const (
	// PasswordSourceKeyring reads the password from the OS keyring.
	PasswordSourceKeyring PasswordSource = "keyring"
	// PasswordSourceSecretFile reads the password from a file on disk.
	PasswordSourceSecretFile PasswordSource = "secret_file"
)

const (
	// DefaultPath is where the daemon looks for its configuration.
	DefaultPath = "/etc/system-mqtt.yaml"

	defaultMQTTServer      = "mqtt://localhost:1883"
	defaultUpdateInterval  = 30 * time.Second
	defaultDiscoveryPrefix = "homeassistant"
	defaultTopicPrefix     = "system-mqtt"
	defaultLogLevel        = "info"
)

// driveNamePattern bounds drive names to characters that are safe inside an
// MQTT topic segment.
var driveNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// supportedSchemes lists the broker URL schemes the MQTT client can dial.
var supportedSchemes = map[string]bool{
	"tcp":   true,
	"mqtt":  true,
	"ssl":   true,
	"tls":   true,
	"mqtts": true,
	"ws":    true,
	"wss":   true,
}

// Drive names one filesystem whose usage gets reported.
type Drive struct {
	// Path is the mount point to stat.
	Path string `yaml:"path"`
	// Name becomes the topic segment and the entity id suffix (drive_<name>).
	Name string `yaml:"name"`
}

// Config holds the daemon configuration.
type Config struct {
	// MQTTServer is the broker URL, e.g. mqtt://localhost:1883.
	MQTTServer string `yaml:"mqtt_server"`
	// Username authenticates against the broker; empty means anonymous.
	Username string `yaml:"username,omitempty"`
	// PasswordSource selects keyring or secret_file. Ignored when Username
	// is empty.
	PasswordSource PasswordSource `yaml:"password_source,omitempty"`
	// SecretFile is the password file path, required when PasswordSource is
	// secret_file.
	SecretFile string `yaml:"secret_file,omitempty"`
	// UpdateInterval is the time between metric publications.
	UpdateInterval Duration `yaml:"update_interval"`
	// Drives lists the filesystems to report usage for.
	Drives []Drive `yaml:"drives"`
	// DiscoveryPrefix is the topic root the home-automation hub watches for
	// discovery configs.
	DiscoveryPrefix string `yaml:"discovery_prefix,omitempty"`
	// TopicPrefix is the root of all state topics published by the daemon.
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	// LogLevel specifies the minimum log level to output (debug, info,
	// warn, error).
	LogLevel string `yaml:"log_level,omitempty"`
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	cfg := &Config{}
	prepareConfig(cfg)
	return cfg
}

// prepareConfig fills the fields a hand-written file may omit.
func prepareConfig(cfg *Config) {
	if cfg.MQTTServer == "" {
		cfg.MQTTServer = defaultMQTTServer
	}
	if cfg.PasswordSource == "" {
		cfg.PasswordSource = PasswordSourceKeyring
	}
	// A zero interval means the field was omitted; an explicit zero in the
	// file fails parsing before it gets here.
	if cfg.UpdateInterval == 0 {
		cfg.UpdateInterval = Duration(defaultUpdateInterval)
	}
	if cfg.Drives == nil {
		cfg.Drives = []Drive{{Path: "/", Name: "root"}}
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = defaultDiscoveryPrefix
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// LoadConfig reads the configuration from a YAML file. A missing file is not
// an error: the defaults are written to the path so the operator has a
// template to edit, and the daemon runs with them.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Info("Configuration file does not exist, writing defaults", "path", path)
		cfg := NewConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, log.Errorf("failed to read config file %s: %v", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, log.Errorf("failed to parse config file %s: %v", path, err)
	}
	prepareConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return log.Errorf("failed to create config directory: %v", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return log.Errorf("failed to marshal config: %v", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return log.Errorf("failed to write config file: %v", err)
	}
	return nil
}

// Validate reports the first problem that makes the configuration unusable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.MQTTServer)
	if err != nil {
		return fmt.Errorf("invalid mqtt_server %q: %w", c.MQTTServer, err)
	}
	if !supportedSchemes[u.Scheme] {
		return fmt.Errorf("unsupported mqtt_server scheme %q (use tcp, mqtt, ssl, tls, mqtts, ws or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("mqtt_server %q has no host", c.MQTTServer)
	}

	if c.UpdateInterval.Duration() <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval.Duration())
	}

	switch c.PasswordSource {
	case PasswordSourceKeyring:
	case PasswordSourceSecretFile:
		if c.SecretFile == "" {
			return fmt.Errorf("password_source %q requires secret_file to be set", c.PasswordSource)
		}
	default:
		return fmt.Errorf("unknown password_source %q (use %q or %q)",
			c.PasswordSource, PasswordSourceKeyring, PasswordSourceSecretFile)
	}

	for _, d := range c.Drives {
		if !driveNamePattern.MatchString(d.Name) {
			return fmt.Errorf("drive name %q must match %s", d.Name, driveNamePattern)
		}
		if !filepath.IsAbs(d.Path) {
			return fmt.Errorf("drive path %q must be absolute", d.Path)
		}
	}

	return nil
}
