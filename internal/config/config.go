package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Server  ServerConfig
	Data    DataConfig
	Probe   ProbeConfig
	Refresh RefreshConfig
	Misc    MiscConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

type DataConfig struct {
	// Dir holds the local snapshot files (fallback_economics.json and friends).
	Dir string
}

type ProbeConfig struct {
	// RequestTimeout bounds live fetches on the serving path.
	RequestTimeout time.Duration
	// RefreshTimeout is the wider budget the daily refresh uses per dataset.
	RefreshTimeout time.Duration
}

type RefreshConfig struct {
	Enabled bool
	// At is the daily trigger in HH:MM, interpreted in Misc.Timezone.
	At string
	// Poll is how often the loop checks whether the trigger time has passed.
	Poll time.Duration
}

type MiscConfig struct {
	GinMode  string
	Timezone string
	LogLevel string
}

// LoadConfig reads config.yaml (path from DATASERVE_CONFIG_PATH, default
// ./config), applies defaults, lets DATASERVE_* environment variables
// override everything, and validates the result. The plain PORT variable
// wins over any configured server port so the usual PaaS convention works.
func LoadConfig() (*Config, error) {
	confPath := getEnvOrDefault("DATASERVE_CONFIG_PATH", "./config")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(confPath)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)
	viper.SetDefault("server.request_timeout", 15*time.Second)
	viper.SetDefault("server.cors_allowed_origins", "*")
	viper.SetDefault("data.dir", "./data")
	viper.SetDefault("probe.request_timeout", 3*time.Second)
	viper.SetDefault("probe.refresh_timeout", 10*time.Second)
	viper.SetDefault("refresh.enabled", true)
	viper.SetDefault("refresh.at", "06:00")
	viper.SetDefault("refresh.poll", 30*time.Second)
	viper.SetDefault("misc.gin_mode", "release")
	viper.SetDefault("misc.timezone", "Europe/Prague")
	viper.SetDefault("misc.log_level", "info")

	// Environment variables like DATASERVE_SERVER_PORT override config file values
	viper.AutomaticEnv()
	viper.SetEnvPrefix("DATASERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	port, err := getEnvOrViperPort("PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        viper.GetDuration("server.read_timeout"),
			WriteTimeout:       viper.GetDuration("server.write_timeout"),
			IdleTimeout:        viper.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    viper.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     viper.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: viper.GetString("server.cors_allowed_origins"),
		},
		Data: DataConfig{
			Dir: viper.GetString("data.dir"),
		},
		Probe: ProbeConfig{
			RequestTimeout: viper.GetDuration("probe.request_timeout"),
			RefreshTimeout: viper.GetDuration("probe.refresh_timeout"),
		},
		Refresh: RefreshConfig{
			Enabled: viper.GetBool("refresh.enabled"),
			At:      viper.GetString("refresh.at"),
			Poll:    viper.GetDuration("refresh.poll"),
		},
		Misc: MiscConfig{
			GinMode:  viper.GetString("misc.gin_mode"),
			Timezone: viper.GetString("misc.timezone"),
			LogLevel: viper.GetString("misc.log_level"),
		},
	}

	if err := ensureDataDir(cfg.Data.Dir); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server idle timeout must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.Probe.RequestTimeout <= 0 {
		return fmt.Errorf("probe request timeout must be positive")
	}
	if c.Probe.RefreshTimeout < c.Probe.RequestTimeout {
		return fmt.Errorf("probe refresh timeout %s shorter than request timeout %s",
			c.Probe.RefreshTimeout, c.Probe.RequestTimeout)
	}
	if c.Refresh.Poll <= 0 {
		return fmt.Errorf("refresh poll interval must be positive")
	}
	if _, _, err := c.Refresh.TriggerTime(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Misc.Timezone, err)
	}
	return nil
}

// TriggerTime parses the HH:MM daily trigger.
func (r RefreshConfig) TriggerTime() (hour, minute int, err error) {
	at, err := time.Parse("15:04", r.At)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid refresh.at %q, want HH:MM: %w", r.At, err)
	}
	return at.Hour(), at.Minute(), nil
}

// Location resolves the configured timezone. Empty means Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Misc.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Misc.Timezone)
}

func ensureDataDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", dir, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrViperPort(envKey, viperKey string) (int, error) {
	if value := os.Getenv(envKey); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, value, err)
		}
		return port, nil
	}
	return viper.GetInt(viperKey), nil
}
