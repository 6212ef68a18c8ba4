package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stvp/assert"
	"go.uber.org/zap"
)

func TestDefaultIsValid(t *testing.T) {
	assert.Nil(t, Default().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	assert.Nil(t, os.WriteFile(path, []byte(`{"degree": 4, "sync_writes": true, "log_level": "debug"}`), 0644))

	cfg, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, cfg.Degree, 4)
	assert.True(t, cfg.SyncWrites)
	assert.Equal(t, cfg.LogLevel, "debug")
	assert.Equal(t, cfg.DataDir, Default().DataDir)
	assert.Equal(t, cfg.NodeCacheSize, Default().NodeCacheSize)

	opts := cfg.TreeOptions(zap.NewNop())
	assert.Equal(t, opts.Degree, 4)
	assert.True(t, opts.SyncWrites)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	for i, body := range []string{
		`{"degree": 0}`,
		`{"log_level": "loud"}`,
		`{"log_format": "xml"}`,
		`{"data_dir": ""}`,
		`{"node_cache_size": -1}`,
		`not json`,
	} {
		path := filepath.Join(dir, "bad.json")
		assert.Nil(t, os.WriteFile(path, []byte(body), 0644))
		_, err := Load(path)
		assert.True(t, err != nil, "case", i)
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.True(t, err != nil)
}
