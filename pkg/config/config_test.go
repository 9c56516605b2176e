package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
secureEvents_connector:
  base_url: "https://secure.example.com/"
  store_filename: "run1"
  access_token: "token-1234567890"
  from: "1700000000000000000"
  to: "1700003600000000000"
  limit: 25
  max_retries: 2
  request_timeout: 5s
logging:
  level: debug
  file: connector.log
output:
  backend: file
  directory: out
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.Connector.Limit)
	assert.Equal(t, 3, config.Connector.MaxRetries)
	assert.Equal(t, 30*time.Second, config.Connector.RequestTimeout)
	assert.Equal(t, BackendFile, config.Output.Backend)
	assert.Equal(t, ".", config.Output.Directory)
	assert.Equal(t, "secureEvents_connector.log", config.Logging.File)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, validYAML)

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "https://secure.example.com/", config.Connector.BaseURL)
	assert.Equal(t, "run1", config.Connector.StoreFilename)
	assert.Equal(t, "1700000000000000000", config.Connector.From)
	assert.Equal(t, "1700003600000000000", config.Connector.To)
	assert.Equal(t, 25, config.Connector.Limit)
	assert.Equal(t, 2, config.Connector.MaxRetries)
	assert.Equal(t, 5*time.Second, config.Connector.RequestTimeout)
	assert.Equal(t, "out", config.Output.Directory)
	assert.Equal(t, "debug", config.Logging.Level)

	// Keys absent from the file keep their defaults
	assert.Equal(t, DefaultProfile, config.Connector.CredentialProfile)
}

func TestLoadFromFileErrors(t *testing.T) {
	config := DefaultConfig()

	err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeConfig(t, "secureEvents_connector: [unclosed")
	err = config.LoadFromFile(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SECEVENTS_BASE_URL", "https://env.example.com/")
	t.Setenv("SECEVENTS_ACCESS_TOKEN", "env-token")
	t.Setenv("SECEVENTS_FROM", "1")
	t.Setenv("SECEVENTS_TO", "2")
	t.Setenv("SECEVENTS_LOG_LEVEL", "warn")
	t.Setenv("SECEVENTS_OUTPUT_DIR", "/tmp/pages")
	t.Setenv("SECEVENTS_REDIS_ADDR", "redis:6380")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "https://env.example.com/", config.Connector.BaseURL)
	assert.Equal(t, "env-token", config.Connector.AccessToken)
	assert.Equal(t, "1", config.Connector.From)
	assert.Equal(t, "2", config.Connector.To)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "/tmp/pages", config.Output.Directory)
	assert.Equal(t, "redis:6380", config.Output.Redis.Addr)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Connector.BaseURL = "https://secure.example.com/"
		c.Connector.From = "1"
		c.Connector.To = "2"
		return c
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:   "empty store filename is allowed",
			modify: func(c *Config) { c.Connector.StoreFilename = "" },
		},
		{
			name:   "missing access token is allowed",
			modify: func(c *Config) { c.Connector.AccessToken = "" },
		},
		{
			name:    "missing base url",
			modify:  func(c *Config) { c.Connector.BaseURL = "" },
			wantErr: "base_url is required",
		},
		{
			name:    "missing from",
			modify:  func(c *Config) { c.Connector.From = "" },
			wantErr: "from is required",
		},
		{
			name:    "missing to",
			modify:  func(c *Config) { c.Connector.To = "" },
			wantErr: "to is required",
		},
		{
			name:    "zero limit",
			modify:  func(c *Config) { c.Connector.Limit = 0 },
			wantErr: "limit must be positive",
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Connector.MaxRetries = -1 },
			wantErr: "max retries cannot be negative",
		},
		{
			name:    "zero timeout",
			modify:  func(c *Config) { c.Connector.RequestTimeout = 0 },
			wantErr: "request timeout must be positive",
		},
		{
			name:    "unknown backend",
			modify:  func(c *Config) { c.Output.Backend = "s3" },
			wantErr: "invalid output backend",
		},
		{
			name: "redis backend without address",
			modify: func(c *Config) {
				c.Output.Backend = BackendRedis
				c.Output.Redis.Addr = ""
			},
			wantErr: "redis address is required",
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	config := DefaultConfig()

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is required")
	assert.Contains(t, err.Error(), "from is required")
	assert.Contains(t, err.Error(), "to is required")
}

func TestLoad(t *testing.T) {
	t.Run("file and env", func(t *testing.T) {
		path := writeConfig(t, validYAML)
		t.Setenv("SECEVENTS_TO", "1700007200000000000")

		config, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "1700007200000000000", config.Connector.To)
		assert.Equal(t, "token-1234567890", config.Connector.AccessToken)
	})

	t.Run("missing required keys", func(t *testing.T) {
		path := writeConfig(t, "secureEvents_connector:\n  base_url: \"https://x/\"\n")

		_, err := Load(path)
		assert.ErrorContains(t, err, "configuration validation failed")
	})

	t.Run("dotenv next to the config file", func(t *testing.T) {
		path := writeConfig(t, "secureEvents_connector:\n  base_url: \"https://x/\"\n  from: \"1\"\n")
		envPath := filepath.Join(filepath.Dir(path), ".env")
		require.NoError(t, os.WriteFile(envPath, []byte("SECEVENTS_TO=99\n"), 0644))
		t.Cleanup(func() { os.Unsetenv("SECEVENTS_TO") })

		config, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "99", config.Connector.To)
	})
}

func TestSession(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(writeConfig(t, validYAML)))

	session := config.Session()
	assert.Equal(t, "token-1234567890", session.AccessToken)
	assert.Equal(t, "https://secure.example.com/", session.BaseURL)
	assert.Equal(t, "1700000000000000000", session.StartTime)
	assert.Equal(t, "1700003600000000000", session.EndTime)
	assert.Equal(t, 25, session.PageSizeLimit)
	assert.Equal(t, 2, session.MaxRetries)
}

func TestRedacted(t *testing.T) {
	config := DefaultConfig()
	config.Connector.AccessToken = "token-1234567890"
	config.Output.Redis.Password = "pw"

	redacted := config.Redacted()
	assert.Equal(t, "toke********7890", redacted.Connector.AccessToken)
	assert.Equal(t, "**", redacted.Output.Redis.Password)

	// The original is untouched
	assert.Equal(t, "token-1234567890", config.Connector.AccessToken)
}

func TestSaveRoundTrip(t *testing.T) {
	config := DefaultConfig()
	config.Connector.BaseURL = "https://secure.example.com/"
	config.Connector.From = "1"
	config.Connector.To = "2"

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, config.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Connector, loaded.Connector)
}

func TestParseEpochNanos(t *testing.T) {
	ts, err := ParseEpochNanos("1700000000000000000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), ts)

	_, err = ParseEpochNanos("yesterday")
	assert.Error(t, err)
}
