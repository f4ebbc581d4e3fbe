// Package config provides tool-level configuration for manuscript using
// Viper: defaults, an optional config file, MANUSCRIPT_ environment
// variables and command-line flags, in increasing order of precedence.
//
// This is distinct from workspace options (a site's manuscript.yaml), which
// are owned by the options package.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "MANUSCRIPT"

// Keys used in viper.
const (
	KeyRoot          = "root"
	KeyServerHost    = "server.host"
	KeyServerPort    = "server.port"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyWatchDebounce = "watch.debounce"
)

// Defaults.
const (
	DefaultRoot      = "."
	DefaultHost      = "localhost"
	DefaultPort      = 8888
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultDebounce  = 100 * time.Millisecond
)

type Config struct {
	Root   string       `mapstructure:"root"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Watch  WatchConfig  `mapstructure:"watch"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRoot, DefaultRoot)
	v.SetDefault(KeyServerHost, DefaultHost)
	v.SetDefault(KeyServerPort, DefaultPort)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyWatchDebounce, DefaultDebounce)
}

// ConfigureEnv enables MANUSCRIPT_* overrides, e.g. MANUSCRIPT_SERVER_PORT.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// empty strings from flags or env fall back to defaults
	if config.Root == "" {
		config.Root = DefaultRoot
	}
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}
	if config.Watch.Debounce == 0 {
		config.Watch.Debounce = DefaultDebounce
	}
	config.Log.Level = strings.ToLower(config.Log.Level)
	config.Log.Format = strings.ToLower(config.Log.Format)

	if result := ValidateConfig(&config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", result.Errors[0])
	}

	return &config, nil
}
