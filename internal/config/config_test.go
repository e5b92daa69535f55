package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.User)
	assert.Equal(t, "default", cfg.Routing.Profile)
	assert.Equal(t, 1, cfg.Pipeline.Cost)
	assert.Equal(t, 10, cfg.Pipeline.HistoryTurns)
	assert.True(t, cfg.Pipeline.Redact)
	assert.Equal(t, 5*time.Minute, cfg.Provider.Timeout)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Credit.InitialGrant)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".haven.yaml")
	data := `
provider:
  kind: anthropic
  timeout: 30s
models:
  force: large
routing:
  keywords: [recipe, blog]
pipeline:
  stage_timeout: 45s
server:
  tokens:
    tok-a: alice
    tok-b: bob
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	t.Setenv("HAVEN_PIPELINE_COST", "3")

	v := viper.New()
	Setup(v, path, "")
	require.NoError(t, v.ReadInConfig())
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider.Kind)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "large", cfg.Models.Force)
	assert.Equal(t, []string{"recipe", "blog"}, cfg.Routing.Keywords)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.StageTimeout)
	assert.Equal(t, 3, cfg.Pipeline.Cost)
	assert.Equal(t, "alice", cfg.Server.Tokens["tok-a"])
	assert.ElementsMatch(t, []string{"alice", "bob"}, cfg.Users())
}

func TestValidate(t *testing.T) {
	v := viper.New()
	v.Set("models.force", "medium")
	_, err := Load(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("pipeline.cost", -1)
	_, err = Load(v)
	assert.Error(t, err)
}

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".haven.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user: a\n"), 0644))

	var calls atomic.Int32
	w, err := NewWatcher(path, func() { calls.Add(1) })
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("user: b\n"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))

	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst of writes reloads once")
}
