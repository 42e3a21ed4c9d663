package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	file := filepath.Join(t.TempDir(), "deliciousfood.yml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func Test_Load(t *testing.T) {
	file := writeConfig(t, `
address: 0.0.0.0
port: 9090
base: /api/v1
db: food.db
auth:
  secret: sekrit
  accessLifetime: 5m
  refreshLifetime: 24h
nutritionix:
  baseUrl: https://trackapi.nutritionix.com/v2
  appId: id
  appKey: key
`)

	cfg, err := Load(file)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("0.0.0.0:9090", cfg.ListenAddress())
	assert.Equal("/api/v1", cfg.URIBase)
	assert.Equal("food.db", cfg.DBFile)
	assert.Equal("sekrit", cfg.Auth.Secret)
	assert.Equal(5*time.Minute, time.Duration(cfg.Auth.AccessLifetime))
	assert.Equal(24*time.Hour, time.Duration(cfg.Auth.RefreshLifetime))
	assert.Equal(30*24*time.Hour, time.Duration(cfg.Auth.RememberLifetime), "missing values get defaults")
	assert.True(cfg.Nutritionix.Enabled())
}

func Test_Load_Defaults(t *testing.T) {
	file := writeConfig(t, `
auth:
  secret: sekrit
`)

	cfg, err := Load(file)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("localhost:8080", cfg.ListenAddress())
	assert.Equal("/api", cfg.URIBase)
	assert.Equal("deliciousfood.db", cfg.DBFile)
	assert.Equal(20*time.Minute, time.Duration(cfg.Auth.AccessLifetime))
	assert.False(cfg.Nutritionix.Enabled())
}

func Test_Load_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "missing secret", content: `port: 8080`},
		{name: "bad port", content: "port: 131072\nauth:\n  secret: sekrit"},
		{name: "bad base", content: "base: api\nauth:\n  secret: sekrit"},
		{name: "bad duration", content: "auth:\n  secret: sekrit\n  accessLifetime: five minutes"},
		{name: "not yaml", content: `{{{`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func Test_Load_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
