package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "toml", cfg.StateBackend)
	assert.Equal(t, "local", cfg.StorageType)
	assert.Equal(t, "/etc/os-release", cfg.OSReleasePath)
	assert.Empty(t, cfg.AuthToken)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("MODULECTL_STATE_BACKEND", "sqlite")
	t.Setenv("MODULECTL_REPOS", "fedora:10,updates")
	t.Setenv("MODULECTL_MINIO_USE_SSL", "true")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StateBackend)
	assert.Equal(t, "fedora:10,updates", cfg.Repos)
	assert.True(t, cfg.MinioUseSSL)
}

func TestParseRepos(t *testing.T) {
	repos, err := ParseRepos(" updates , fedora:10,")
	require.NoError(t, err)
	assert.Equal(t, []Repo{{ID: "fedora", Priority: 10}, {ID: "updates", Priority: DefaultRepoPriority}}, repos)
	assert.Equal(t, "fedora:10,updates:99", FormatRepos(repos))

	repos, err = ParseRepos("")
	require.NoError(t, err)
	assert.Empty(t, repos)

	_, err = ParseRepos("fedora:high")
	assert.Error(t, err)
	_, err = ParseRepos(":10")
	assert.Error(t, err)
	_, err = ParseRepos("a,a:5")
	assert.Error(t, err)
}
