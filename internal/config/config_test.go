package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.GitHub.TargetUsers)
	assert.Equal(t, "followers:1..10000000", cfg.GitHub.Query)
	assert.Equal(t, "cache/users.json", cfg.Cache.Path)
	assert.Equal(t, "docs/images/faces", cfg.Faces.Dir)
	assert.Equal(t, "data/faces.db", cfg.Database.Path)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Storage.Bucket)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACES_GITHUB_TARGETUSERS", "25")
	t.Setenv("FACES_SERVER_ADDR", "127.0.0.1:9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.GitHub.TargetUsers)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
}

func TestLoadTokenFallback(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "conventional-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "conventional-token", cfg.GitHub.Token)

	t.Setenv("FACES_GITHUB_TOKEN", "prefixed-token")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed-token", cfg.GitHub.Token, "the prefixed variable wins")
}
