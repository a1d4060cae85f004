package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultWebhookName, cfg.Relay.WebhookName)
	assert.Equal(t, DefaultPriceLabel, cfg.Preview.PriceLabel)
	assert.Equal(t, 20*time.Second, cfg.Preview.FetchTimeout())
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
}

func TestLoadFileOverridesAndToken(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TOKEN", "")
	t.Setenv("DISCORD_TOKEN", " secret ")

	path := filepath.Join(dir, "config.toml")
	body := `
[log]
level = "debug"
format = "json"

[server]
addr = ":9090"

[relay]
webhook_name = ""

[preview]
timeout = "5s"
price_label = "Price"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DefaultWebhookName, cfg.Relay.WebhookName)
	assert.Equal(t, "Price", cfg.Preview.PriceLabel)
	assert.Equal(t, DefaultRatingLabel, cfg.Preview.RatingLabel)
	assert.Equal(t, 5*time.Second, cfg.Preview.FetchTimeout())
	assert.Equal(t, "secret", cfg.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TOKEN", "")
	t.Setenv("DISCORD_TOKEN", "")
	// godotenv does not override variables that are already set, including
	// empty ones, so drop TOKEN for the duration of the test.
	require.NoError(t, os.Unsetenv("TOKEN"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEnvPath), []byte("TOKEN=from-dotenv\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Token)
}

func TestFetchTimeoutFallsBackOnGarbage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 20*time.Second, PreviewConfig{Timeout: "soon"}.FetchTimeout())
	assert.Equal(t, time.Duration(0), PreviewConfig{Timeout: "0s"}.FetchTimeout())
}
