package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/xyzj/chatstore/storage"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr())
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]struct {
		mutate func(c *Config)
		ok     bool
	}{
		"unknown backend":      {func(c *Config) { c.Backend = "etcd" }, false},
		"redis without host":   {func(c *Config) { c.Redis.Host = "" }, false},
		"redis port too large": {func(c *Config) { c.Redis.Port = 70000 }, false},
		"negative max":         {func(c *Config) { c.MaxMessages = -1 }, false},
		"bad log level":        {func(c *Config) { c.LogLevel = "loud" }, false},
		"file needs a path":    {func(c *Config) { c.Backend = backendFile; c.DataFile = "" }, false},
		"memory ignores redis": {func(c *Config) { c.Backend = backendMemory; c.Redis = storage.RedisConfig{} }, true},
		"file with path":       {func(c *Config) { c.Backend = backendFile; c.DataFile = "/tmp/x.db" }, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if tc.ok {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}

func TestOpenClient_Memory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = backendMemory
	kv, err := openClient(context.Background(), cfg)
	require.NoError(t, err)
	require.IsType(t, &storage.MemoryClient{}, kv)
}

func TestLogAdapter(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := newLogAdapter(log.New(buf))
	logg.Warning("partial save")
	logg.Error("list failed")
	logg.System("ignored")

	require.Contains(t, buf.String(), "partial save")
	require.Contains(t, buf.String(), "list failed")
	require.NotContains(t, buf.String(), "ignored")
}
