package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()

	config, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, ".", config.Root)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8888, config.Server.Port)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, 100*time.Millisecond, config.Watch.Debounce)
	assert.Equal(t, "localhost:8888", config.Server.Addr())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, config *Config)
	}{
		{
			name: "explicit values",
			setup: func(v *viper.Viper) {
				v.Set(KeyRoot, "site")
				v.Set(KeyServerPort, 3000)
				v.Set(KeyServerHost, "0.0.0.0")
				v.Set(KeyLogLevel, "DEBUG")
				v.Set(KeyWatchDebounce, "250ms")
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, "site", config.Root)
				assert.Equal(t, "0.0.0.0:3000", config.Server.Addr())
				assert.Equal(t, "debug", config.Log.Level)
				assert.Equal(t, 250*time.Millisecond, config.Watch.Debounce)
			},
		},
		{
			name: "empty root falls back to default",
			setup: func(v *viper.Viper) {
				v.Set(KeyRoot, "")
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, ".", config.Root)
			},
		},
		{
			name: "invalid port type",
			setup: func(v *viper.Viper) {
				v.Set(KeyServerPort, "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func(v *viper.Viper) {
				v.Set(KeyServerPort, 70000)
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(v *viper.Viper) {
				v.Set(KeyLogFormat, "xml")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MANUSCRIPT_SERVER_PORT", "9999")
	t.Setenv("MANUSCRIPT_LOG_FORMAT", "json")

	v := viper.New()
	ConfigureEnv(v)

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "json", config.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manuscript-tool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4321\nwatch:\n  debounce: 1s\n"), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	config, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4321, config.Server.Port)
	assert.Equal(t, time.Second, config.Watch.Debounce)
}

func TestLoadUsesGlobalViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set(KeyServerPort, 1234)

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1234, config.Server.Port)
}

func TestValidateConfig(t *testing.T) {
	config := &Config{
		Root:   " ",
		Server: ServerConfig{Host: "local;host", Port: 80},
		Log:    LogConfig{Level: "loud", Format: "text"},
		Watch:  WatchConfig{Debounce: -time.Second},
	}

	result := ValidateConfig(config)
	require.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())

	fields := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{KeyRoot, KeyServerHost, KeyLogLevel, KeyWatchDebounce}, fields)

	out := result.String()
	assert.Contains(t, out, "unknown log level")
	assert.Contains(t, out, "hint: Use one of: debug, info, warn, error")
	assert.Contains(t, out, "privileges")
}
