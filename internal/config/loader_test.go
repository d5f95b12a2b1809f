package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
webhook:
  tunnel:
    authtoken: tok-123
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "hookgate", cfg.Service.Name)
	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, DefaultWebhookHost, cfg.Webhook.Host)
	assert.Equal(t, DefaultWebhookPort, cfg.Webhook.Port)
	assert.Equal(t, "tok-123", cfg.Webhook.Tunnel.AuthToken)
}

func TestLoadConfiguredBindBeatsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
webhook:
  host: 0.0.0.0
  port: 9100
  tunnel:
    authtoken: tok-123
`))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Webhook.Host)
	assert.Equal(t, 9100, cfg.Webhook.Port)
}

func TestLoadEnvOverrideBeatsConfigured(t *testing.T) {
	t.Setenv(EnvWebhookAddress, "192.168.1.10")
	t.Setenv(EnvWebhookPort, "9999")

	cfg, err := Load(writeConfig(t, `
webhook:
  host: 0.0.0.0
  port: 9100
  tunnel:
    authtoken: tok-123
`))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.10", cfg.Webhook.Host)
	assert.Equal(t, 9999, cfg.Webhook.Port)
}

func TestLoadEnvOverrideBadPort(t *testing.T) {
	t.Setenv(EnvWebhookPort, "not-a-port")

	_, err := Load(writeConfig(t, minimalConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvWebhookPort)
}

func TestLoadInterpolatesEnvVars(t *testing.T) {
	t.Setenv("NGROK_TOKEN", "tok-from-env")

	cfg, err := Load(writeConfig(t, `
webhook:
  tunnel:
    authtoken: ${NGROK_TOKEN}
`))
	require.NoError(t, err)
	assert.Equal(t, "tok-from-env", cfg.Webhook.Tunnel.AuthToken)
}

func TestLoadUnresolvedTokenEnvVarFails(t *testing.T) {
	_, err := Load(writeConfig(t, `
webhook:
  tunnel:
    authtoken: ${DEFINITELY_NOT_SET_HOOKGATE}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_HOOKGATE")
}

func TestLoadMissingAuthTokenFails(t *testing.T) {
	_, err := Load(writeConfig(t, `
service:
  name: hookgate
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authtoken")
}

func TestLoadDuplicateFeedNameFails(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
feeds:
  - name: trading-view
    token: a
  - name: trading-view
    token: b
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate feed name")
}

func TestLoadInvalidForwardURLFails(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
feeds:
  - name: trading-view
    token: a
    forward_url: "not a url"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward_url")
}

func TestLoadInvalidPortFails(t *testing.T) {
	_, err := Load(writeConfig(t, `
webhook:
  port: 70000
  tunnel:
    authtoken: tok
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.port")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}
