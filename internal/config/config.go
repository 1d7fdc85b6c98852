package config

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Config holds the settings of the webflow command line tool
	Config struct {
		LogLevel    string         `yaml:"log_level"`
		Definitions string         `yaml:"definitions"`
		Store       StoreConfig    `yaml:"store"`
		LockTTL     time.Duration  `yaml:"lock_ttl"`
		Security    SecurityConfig `yaml:"security"`
	}

	// StoreConfig selects where paused executions are kept
	StoreConfig struct {
		Backend string      `yaml:"backend"`
		Path    string      `yaml:"path"`
		Redis   RedisConfig `yaml:"redis"`
	}

	// RedisConfig configures the redis store and conversation locker
	RedisConfig struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		TTL      time.Duration `yaml:"ttl"`
	}

	// SecurityConfig configures the store middleware chain
	SecurityConfig struct {
		EncryptionKey string   `yaml:"encryption_key"`
		FallbackKeys  []string `yaml:"fallback_keys"`
		PIIPatterns   []string `yaml:"pii_patterns"`
	}
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

const (
	DefaultLogLevel    = "info"
	DefaultDefinitions = "."
	DefaultBackend     = BackendMemory
	DefaultStorePath   = ".webflow/executions"
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "webflow:"
	DefaultLockTTL     = 30 * time.Second

	MaxRedisDB = 15
	KeySize    = 32
)

var (
	ErrInvalidLogLevel      = errors.New("invalid log level")
	ErrMissingDefinitions   = errors.New("definitions directory is required")
	ErrInvalidBackend       = errors.New("invalid store backend")
	ErrMissingStorePath     = errors.New("file store path is required")
	ErrMissingRedisAddr     = errors.New("redis address is required")
	ErrInvalidRedisDB       = errors.New("invalid redis database")
	ErrInvalidRedisTTL      = errors.New("redis ttl must not be negative")
	ErrInvalidLockTTL       = errors.New("lock ttl must be positive")
	ErrInvalidEncryptionKey = errors.New("encryption key must decode to 32 bytes")
	ErrInvalidPIIPattern    = errors.New("invalid pii pattern")
	ErrInvalidEnvValue      = errors.New("invalid environment value")
)

// NewDefault creates a configuration with default values
func NewDefault() *Config {
	return &Config{
		LogLevel:    DefaultLogLevel,
		Definitions: DefaultDefinitions,
		Store: StoreConfig{
			Backend: DefaultBackend,
			Path:    DefaultStorePath,
			Redis: RedisConfig{
				Addr:   DefaultRedisAddr,
				Prefix: DefaultRedisPrefix,
			},
		},
		LockTTL: DefaultLockTTL,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := NewDefault()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv overrides configuration values from WEBFLOW_* variables
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"WEBFLOW_LOG_LEVEL":      &c.LogLevel,
		"WEBFLOW_DEFINITIONS":    &c.Definitions,
		"WEBFLOW_STORE":          &c.Store.Backend,
		"WEBFLOW_STORE_PATH":     &c.Store.Path,
		"WEBFLOW_REDIS_ADDR":     &c.Store.Redis.Addr,
		"WEBFLOW_REDIS_PASSWORD": &c.Store.Redis.Password,
		"WEBFLOW_REDIS_PREFIX":   &c.Store.Redis.Prefix,
		"WEBFLOW_ENCRYPTION_KEY": &c.Security.EncryptionKey,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("WEBFLOW_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: WEBFLOW_REDIS_DB=%s", ErrInvalidEnvValue, v)
		}
		c.Store.Redis.DB = db
	}
	if err := loadEnvDuration("WEBFLOW_REDIS_TTL", &c.Store.Redis.TTL); err != nil {
		return err
	}
	return loadEnvDuration("WEBFLOW_LOCK_TTL", &c.LockTTL)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.Definitions == "" {
		return ErrMissingDefinitions
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return ErrMissingStorePath
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return ErrMissingRedisAddr
		}
		if c.Store.Redis.DB < 0 || c.Store.Redis.DB > MaxRedisDB {
			return fmt.Errorf("%w: %d", ErrInvalidRedisDB, c.Store.Redis.DB)
		}
		if c.Store.Redis.TTL < 0 {
			return ErrInvalidRedisTTL
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidBackend, c.Store.Backend)
	}

	if c.LockTTL <= 0 {
		return ErrInvalidLockTTL
	}

	if _, _, err := c.Security.Keys(); err != nil {
		return err
	}

	for _, p := range c.Security.PIIPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidPIIPattern, p, err)
		}
	}
	return nil
}

// Keys decodes the active and fallback encryption keys. A config without an
// active key returns nil keys
func (s SecurityConfig) Keys() ([]byte, [][]byte, error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey(s.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	fallback := make([][]byte, 0, len(s.FallbackKeys))
	for _, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

// decodeKey accepts hex or standard base64
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if key, err := hex.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	if key, err := base64.StdEncoding.DecodeString(s); err == nil && len(key) == KeySize {
		return key, nil
	}
	return nil, ErrInvalidEncryptionKey
}

func loadEnvDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%s", ErrInvalidEnvValue, name, v)
	}
	*dst = d
	return nil
}
