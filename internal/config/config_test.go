package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.False(t, c.IsProd())
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, 3, c.Auth.AccountLockoutCount)
	assert.Equal(t, 7*24*time.Hour, c.Auth.InitialPasswordExpiry)
	assert.Equal(t, 20*time.Minute, c.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, c.MFA.RememberMeExpiry)
	assert.Equal(t, "my-diary", c.MFA.LegacyDiaryClient)
	assert.Equal(t, "token-verification-api-client", c.TokenVerification.ClientID)
	assert.Equal(t, 9, c.Auth.PasswordPolicy.MinLength)
	assert.Equal(t, "sa:", c.Redis.Prefix)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
app:
  app_env: staging
auth:
  account_lockout_count: 5
  token_expiry:
    RESET: 2h
directories:
  delius:
    enabled: true
    base_url: http://delius
    read_timeout: 3s
    role_mappings:
      CWBT001: [ROLE_LICENCE_RO]
mfa:
  approved_networks: [10.0.0.0/8]
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.App.Env)
	assert.Equal(t, 5, c.Auth.AccountLockoutCount)
	assert.Equal(t, 2*time.Hour, c.Auth.TokenExpiry["RESET"])
	assert.True(t, c.Directories.Delius.Enabled)
	assert.Equal(t, "http://delius", c.Directories.Delius.BaseURL)
	assert.Equal(t, 3*time.Second, c.Directories.Delius.ReadTimeout)
	assert.Equal(t, 2*time.Second, c.Directories.Delius.ConnectTimeout)
	assert.Equal(t, []string{"ROLE_LICENCE_RO"}, c.Directories.Delius.RoleMappings["CWBT001"])
	assert.Equal(t, []string{"10.0.0.0/8"}, c.MFA.ApprovedNetworks)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "auth:\n  account_lockout_count: 5\n")
	t.Setenv("AUTH_ACCOUNT_LOCKOUT_COUNT", "7")
	t.Setenv("MFA_APPROVED_NETWORKS", " 10.0.0.0/8, ,192.168.0.1 ")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("REDIS_DB", "not-a-number")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Auth.AccountLockoutCount)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.0.1"}, c.MFA.ApprovedNetworks)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 5*time.Minute, c.JWT.AccessTTL)
	assert.Equal(t, 0, c.Redis.DB)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown driver":     "storage:\n  driver: mysql\n",
		"postgres no dsn":    "storage:\n  driver: postgres\n",
		"negative lockout":   "auth:\n  account_lockout_count: -1\n",
		"nomis without url":  "directories:\n  nomis:\n    enabled: true\n",
		"verify without url": "token_verification:\n  enabled: true\n",
		"prod without seed":  "app:\n  app_env: prod\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	t.Setenv("JWT_PRIVATE_KEY_SEED", "AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=")
	c, err := Load(writeConfig(t, "app:\n  app_env: prod\n"))
	require.NoError(t, err)
	assert.True(t, c.IsProd())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestExampleConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Auth.TokenExpiry, 7)
	assert.True(t, c.Rate.Enabled)
}
