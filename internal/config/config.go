package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config stores runtime configuration for the companion client.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Credentials CredentialsConfig `toml:"credentials"`
	Transport   TransportConfig   `toml:"transport"`
	Reconnect   ReconnectConfig   `toml:"reconnect"`
	Audio       AudioConfig       `toml:"audio"`
	Log         LogConfig         `toml:"log"`

	// Path is the config file that was loaded, if any.
	Path string `toml:"-"`
}

type ServerConfig struct {
	URL      string `toml:"url"`
	DeviceID string `toml:"device_id"`
}

type CredentialsConfig struct {
	IMEI       string `toml:"imei"`
	AccountKey string `toml:"account_key"`
}

type TransportConfig struct {
	HandshakeTimeoutMS int `toml:"handshake_timeout_ms"`
	PingIntervalMS     int `toml:"ping_interval_ms"`
	WriteTimeoutMS     int `toml:"write_timeout_ms"`
}

type ReconnectConfig struct {
	MaxAttempts    int     `toml:"max_attempts"`
	InitialDelayMS int     `toml:"initial_delay_ms"`
	MaxDelayMS     int     `toml:"max_delay_ms"`
	Jitter         float64 `toml:"jitter"`
}

type AudioConfig struct {
	PlayerCommand string `toml:"player_command"`
	Playback      bool   `toml:"playback"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func (c TransportConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

func (c TransportConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

func (c TransportConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMS) * time.Millisecond
}

func (c ReconnectConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMS) * time.Millisecond
}

func (c ReconnectConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMS) * time.Millisecond
}

// DeviceID is the explicit server.device_id, or the IMEI when none was set.
// It is resolved on read so that a later IMEI override is still followed.
func (c Config) DeviceID() string {
	if c.Server.DeviceID != "" {
		return c.Server.DeviceID
	}
	return strings.TrimSpace(c.Credentials.IMEI)
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Transport: TransportConfig{HandshakeTimeoutMS: 10000, WriteTimeoutMS: 10000},
		Reconnect: ReconnectConfig{InitialDelayMS: 1000, MaxDelayMS: 30000, Jitter: 0.2},
		Audio:     AudioConfig{PlayerCommand: "ffplay", Playback: true},
		Log:       LogConfig{Level: "info", Format: "auto"},
	}
}

// Load resolves configuration from an optional TOML file, environment
// variables and defaults, in increasing order of precedence.
func Load() (Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path falls
// back to COMPANION_CONFIG and then ~/.config/companion/config.toml.
func LoadFrom(path string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := Default()

	path = firstNonEmpty(path, os.Getenv("COMPANION_CONFIG"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join(home, ".config", "companion", "config.toml")
	}
	if err := loadFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	cfg.Server.URL = envOrDefault("COMPANION_SERVER_URL", cfg.Server.URL)
	cfg.Server.DeviceID = envOrDefault("COMPANION_DEVICE_ID", cfg.Server.DeviceID)
	cfg.Credentials.IMEI = envOrDefault("COMPANION_IMEI", cfg.Credentials.IMEI)
	cfg.Credentials.AccountKey = envOrDefault("COMPANION_ACCOUNT_KEY", cfg.Credentials.AccountKey)
	cfg.Transport.HandshakeTimeoutMS = envOrDefaultInt("COMPANION_HANDSHAKE_TIMEOUT_MS", cfg.Transport.HandshakeTimeoutMS)
	cfg.Transport.PingIntervalMS = envOrDefaultInt("COMPANION_PING_INTERVAL_MS", cfg.Transport.PingIntervalMS)
	cfg.Transport.WriteTimeoutMS = envOrDefaultInt("COMPANION_WRITE_TIMEOUT_MS", cfg.Transport.WriteTimeoutMS)
	cfg.Reconnect.MaxAttempts = envOrDefaultInt("COMPANION_RECONNECT_ATTEMPTS", cfg.Reconnect.MaxAttempts)
	cfg.Reconnect.InitialDelayMS = envOrDefaultInt("COMPANION_RECONNECT_INITIAL_DELAY_MS", cfg.Reconnect.InitialDelayMS)
	cfg.Reconnect.MaxDelayMS = envOrDefaultInt("COMPANION_RECONNECT_MAX_DELAY_MS", cfg.Reconnect.MaxDelayMS)
	cfg.Audio.PlayerCommand = envOrDefault("COMPANION_PLAYER_COMMAND", cfg.Audio.PlayerCommand)
	cfg.Audio.Playback = envOrDefaultBool("COMPANION_AUDIO_PLAYBACK", cfg.Audio.Playback)
	cfg.Log.Level = envOrDefault("COMPANION_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("COMPANION_LOG_FORMAT", cfg.Log.Format)

	cfg.normalize()
	return cfg, nil
}

func loadFile(path string, explicit bool, cfg *Config) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := toml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	cfg.Path = path
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Server.URL = strings.TrimSpace(c.Server.URL)
	c.Server.DeviceID = strings.TrimSpace(c.Server.DeviceID)
	if c.Transport.HandshakeTimeoutMS <= 0 {
		c.Transport.HandshakeTimeoutMS = defaults.Transport.HandshakeTimeoutMS
	}
	if c.Transport.PingIntervalMS < 0 {
		c.Transport.PingIntervalMS = 0
	}
	if c.Transport.WriteTimeoutMS <= 0 {
		c.Transport.WriteTimeoutMS = defaults.Transport.WriteTimeoutMS
	}
	if c.Reconnect.MaxAttempts < 0 {
		c.Reconnect.MaxAttempts = 0
	}
	if c.Reconnect.InitialDelayMS <= 0 {
		c.Reconnect.InitialDelayMS = defaults.Reconnect.InitialDelayMS
	}
	if c.Reconnect.MaxDelayMS < c.Reconnect.InitialDelayMS {
		c.Reconnect.MaxDelayMS = c.Reconnect.InitialDelayMS
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		c.Reconnect.Jitter = defaults.Reconnect.Jitter
	}
	if strings.TrimSpace(c.Audio.PlayerCommand) == "" {
		c.Audio.PlayerCommand = defaults.Audio.PlayerCommand
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
