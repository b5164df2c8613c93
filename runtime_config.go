package webcodecs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig describes the shared infrastructure of a process: the
// worker dispatcher, the scratch buffer pool, logging and engine selection.
type RuntimeConfig struct {
	Dispatcher DispatcherSettings `yaml:"dispatcher"`
	Pool       PoolSettings       `yaml:"pool"`
	Log        LogSettings        `yaml:"log"`
	Engine     EngineSettings     `yaml:"engine"`
}

// DispatcherSettings configures the worker dispatcher.
type DispatcherSettings struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// PoolSettings configures the scratch buffer pool.
type PoolSettings struct {
	Limit    int `yaml:"limit"`     // Maximum pooled buffers
	MinClass int `yaml:"min_class"` // Smallest capacity class in bytes
	MaxClass int `yaml:"max_class"` // Larger requests bypass the pool
}

// LogSettings configures the zap logger.
type LogSettings struct {
	Level       string `yaml:"level"`                 // debug, info, warn, error
	Development bool   `yaml:"development,omitempty"` // Human-readable console output
}

// EngineSettings selects codec engines.
type EngineSettings struct {
	Native  bool   `yaml:"native,omitempty"`  // Load libcodec_engine and make it the default
	Library string `yaml:"library,omitempty"` // Explicit library path
}

// LoadRuntimeConfig reads a RuntimeConfig from a YAML file.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}
	return ParseRuntimeConfig(data)
}

// ParseRuntimeConfig decodes YAML, rejecting unknown fields, applies
// defaults and validates the result. Empty input yields the defaults.
func ParseRuntimeConfig(data []byte) (*RuntimeConfig, error) {
	var cfg RuntimeConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode runtime config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults applies explicit default values to unset fields.
func (c *RuntimeConfig) setDefaults() {
	if c.Pool.Limit == 0 {
		c.Pool.Limit = defaultPoolLimit
	}
	if c.Pool.MinClass == 0 {
		c.Pool.MinClass = defaultPoolMinClass
	}
	if c.Pool.MaxClass == 0 {
		c.Pool.MaxClass = defaultPoolMaxClass
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that all values are within acceptable ranges.
func (c *RuntimeConfig) Validate() error {
	if c.Dispatcher.Workers < 0 {
		return fmt.Errorf("dispatcher: workers must be >= 0, got %d", c.Dispatcher.Workers)
	}
	if c.Pool.Limit < 0 {
		return fmt.Errorf("pool: limit must be >= 0, got %d", c.Pool.Limit)
	}
	if c.Pool.MinClass < 0 || c.Pool.MaxClass < c.Pool.MinClass {
		return fmt.Errorf("pool: need 0 <= min_class <= max_class, got %d and %d", c.Pool.MinClass, c.Pool.MaxClass)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Engine.Library != "" && !c.Engine.Native {
		return errors.New("engine: library requires native: true")
	}
	return nil
}

// NewLogger builds the zap logger described by the log settings.
func (c *RuntimeConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// NewDispatcher creates a dispatcher from the dispatcher settings.
func (c *RuntimeConfig) NewDispatcher(log *zap.Logger, metrics *Metrics) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Workers: c.Dispatcher.Workers,
		Logger:  log,
		Metrics: metrics,
	})
}

// NewBufferPool creates a buffer pool from the pool settings.
func (c *RuntimeConfig) NewBufferPool(log *zap.Logger, metrics *Metrics) *BufferPool {
	return NewBufferPool(BufferPoolConfig{
		Limit:    c.Pool.Limit,
		MinClass: c.Pool.MinClass,
		MaxClass: c.Pool.MaxClass,
		Logger:   log,
		Metrics:  metrics,
	})
}

// RegisterEngines loads the native engine when enabled and makes it the
// default for every codec. It returns nil if no native engine is wanted.
func (c *RuntimeConfig) RegisterEngines() (*NativeEngine, error) {
	if !c.Engine.Native {
		return nil, nil
	}
	e, err := LoadNativeEngine(c.Engine.Library)
	if err != nil {
		return nil, err
	}
	e.Register()
	for _, codec := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		SetDefaultVideoEncoderEngine(codec, NativeEngineName)
		SetDefaultVideoDecoderEngine(codec, NativeEngineName)
	}
	for _, codec := range []AudioCodec{AudioCodecOpus, AudioCodecG711A, AudioCodecG711U, AudioCodecAAC, AudioCodecPCM} {
		SetDefaultAudioEncoderEngine(codec, NativeEngineName)
		SetDefaultAudioDecoderEngine(codec, NativeEngineName)
	}
	return e, nil
}
