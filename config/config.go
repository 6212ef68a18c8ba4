// Package config holds the engine settings shared by the index managers,
// the coordinator and the command line tools.
package config

import (
	"encoding/json"
	"os"

	bplus "TinyRDB/bplustree"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// DataDir is the catalog root: <DataDir>/<db>/tables and <DataDir>/<db>/indexes.
	DataDir string `json:"data_dir"`
	// Degree of newly created index trees.
	Degree int `json:"degree"`
	// NodeCacheSize is the number of decoded nodes cached per open index.
	NodeCacheSize int `json:"node_cache_size"`
	// SyncWrites fsyncs index files after every mutation.
	SyncWrites bool `json:"sync_writes"`
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `json:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `json:"log_format"`
}

func Default() Config {
	return Config{
		DataDir:       "databases",
		Degree:        bplus.DefaultDegree,
		NodeCacheSize: 1024,
		SyncWrites:    false,
		LogLevel:      "info",
		LogFormat:     "console",
	}
}

// Load reads a JSON config file. Fields missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Degree < 1 {
		return errors.Errorf("degree must be at least 1, got %d", c.Degree)
	}
	if c.NodeCacheSize < 0 {
		return errors.Errorf("node_cache_size must not be negative, got %d", c.NodeCacheSize)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "bad log_level")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return errors.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// TreeOptions returns the options used to create or open an index tree.
func (c Config) TreeOptions(logger *zap.Logger) bplus.Options {
	return bplus.Options{
		Degree:     c.Degree,
		CacheSize:  c.NodeCacheSize,
		SyncWrites: c.SyncWrites,
		Logger:     logger,
	}
}
