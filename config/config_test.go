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
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "literature_club.db", cfg.Database.Path)
	assert.Equal(t, "resources", cfg.Covers.Dir)
	assert.Equal(t, "placeholder.png", cfg.Covers.Placeholder)
	assert.Nil(t, cfg.Covers.Mapping())
	assert.False(t, cfg.Covers.MinIO.Enabled())
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Address())
	assert.Equal(t, time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "club.toml")
	content := `
[database]
path = "data/club.db"

[covers]
dir = "covers"

[covers.map]
B112F4 = "master.png"

[covers.minio]
endpoint = "localhost:9000"
bucket = "club-covers"

[jwt]
expires_in = "30m"

[server]
port = 9090
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	t.Setenv("BOOKCLUB_JWT_SECRET", "s3cret")
	t.Setenv("BOOKCLUB_SERVER_HOST", "0.0.0.0")

	cfg, err := Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, "data/club.db", cfg.Database.Path)
	assert.Equal(t, "covers", cfg.Covers.Dir)
	assert.Equal(t, map[string]string{"B112F4": "master.png"}, cfg.Covers.Mapping())
	assert.True(t, cfg.Covers.MinIO.Enabled())
	assert.Equal(t, "club-covers", cfg.Covers.MinIO.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.JWT.ExpiresIn)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
}

func TestLoadSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.toml"),
		[]byte("[log]\nlevel = \"debug\"\n"), 0o644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadBrokenFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(file, []byte("[database\npath ="), 0o644))

	_, err := Load(viper.New(), file)
	assert.Error(t, err)
}

func TestConfigureLogging(t *testing.T) {
	assert.NoError(t, ConfigureLogging(LogConfig{Level: "warn"}))
	assert.Error(t, ConfigureLogging(LogConfig{Level: "chatty"}))
}
