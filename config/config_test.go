package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConf(t, `{
		"API_KEYS": {"FAL_KEY": "from-file", "GEMINI_API_KEY": "gem"},
		"SETTINGS": {"PORT": "9000", "POLL_INTERVAL": "250ms", "HISTORY_LIMIT": 10}
	}`)
	t.Setenv("FAL_KEY", "from-env")
	t.Setenv("HISTORY_LIMIT", "5")
	t.Setenv("REQUEST_TIMEOUT", "30")
	t.Setenv("REDIS_USE_TLS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKeys.Fal)
	assert.Equal(t, "gem", cfg.APIKeys.Gemini)
	assert.Equal(t, "9000", cfg.Settings.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Settings.PollInterval.Std())
	assert.Equal(t, 30*time.Second, cfg.Settings.RequestTimeout.Std())
	assert.Equal(t, 5, cfg.Settings.HistoryLimit)
	assert.True(t, cfg.Redis.UseTLS)
}

func TestFalKeyAlias(t *testing.T) {
	t.Setenv("FAL_API_KEY", "legacy")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.APIKeys.Fal)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	t.Setenv("FAL_QUEUE", "maybe")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_UPLOAD_BYTES")
	assert.Contains(t, err.Error(), "FAL_QUEUE")
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(writeConf(t, `{"SETTINGS": `))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.APIKeys.Fal = "key"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no provider key":     func(c *Config) { c.APIKeys.Fal = "" },
		"unknown backend":     func(c *Config) { c.Settings.UploadBackend = "s3" },
		"supabase incomplete": func(c *Config) { c.Settings.UploadBackend = BackendSupabase },
		"nodeimage no key":    func(c *Config) { c.Settings.UploadBackend = BackendNodeImage },
		"zero upload limit":   func(c *Config) { c.Settings.MaxUploadBytes = 0 },
		"zero concurrency":    func(c *Config) { c.Settings.MaxConcurrentUploads = 0 },
		"zero history":        func(c *Config) { c.Settings.HistoryLimit = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	gemini := Default()
	gemini.APIKeys.Gemini = "g"
	gemini.Settings.UploadBackend = BackendSupabase
	gemini.Supabase.URL = "https://x.supabase.co"
	gemini.Supabase.ServiceKey = "svc"
	assert.NoError(t, gemini.Validate())
}
