package main

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/xyzj/chatstore/storage"
)

const (
	backendRedis  = "redis"
	backendFile   = "file"
	backendMemory = "memory"
)

// Config is the resolved command line and environment configuration.
type Config struct {
	Backend     string
	Redis       storage.RedisConfig
	DataFile    string
	MaxMessages int
	MetricsAddr string
	LogLevel    string
}

// DefaultConfig returns the values used when neither a flag nor an
// environment variable is set.
func DefaultConfig() *Config {
	return &Config{
		Backend: backendRedis,
		Redis: storage.RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		DataFile: "chatstore.db",
		LogLevel: "info",
	}
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(backendRedis, backendFile, backendMemory)),
		validation.Field(&c.DataFile, validation.When(c.Backend == backendFile, validation.Required)),
		validation.Field(&c.MaxMessages, validation.Min(0)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return err
	}
	if c.Backend != backendRedis {
		return nil
	}
	r := &c.Redis
	if err := validation.ValidateStruct(r,
		validation.Field(&r.Host, validation.Required),
		validation.Field(&r.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&r.DB, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
