package config

import (
	"fmt"
	"strconv"
	"strings"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks values that flags may have overridden after Load
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("unsupported log level '%s': supported levels are debug, info, warn, error", c.LogLevel)
	}

	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("unsupported log format '%s': supported formats are text, json", c.LogFormat)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative: %d", c.Workers)
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative: %d", c.CacheSize)
	}

	if _, err := c.ResourceTypeID(); err != nil {
		return err
	}

	return nil
}

// ResourceTypeID parses the configured resource type, written as hex with
// or without a 0x prefix.
func (c *Config) ResourceTypeID() (uint64, error) {
	s := strings.TrimPrefix(strings.ToLower(c.ResourceType), "0x")
	id, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid resource type '%s': %w", c.ResourceType, err)
	}
	return id, nil
}

// RequireDataRoot fails when no data root has been configured
func (c *Config) RequireDataRoot() error {
	if c.DataRoot == "" {
		return fmt.Errorf("no data root configured: set data_root or pass --data-root")
	}
	return nil
}
