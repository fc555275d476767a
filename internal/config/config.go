package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBackend      = BackendGemini
	DefaultModel        = "gemini-2.5-flash-preview-tts"
	DefaultVoice        = "Kore"
	DefaultSegmentSize  = 4500
	DefaultMaxRetries   = 5
	DefaultInitialDelay = 2 * time.Second
	DefaultSampleRate   = 24000
	DefaultBitrateKbps  = 128
	// DefaultListenAddr is used by `serve` when nothing else is configured.
	DefaultListenAddr            = "127.0.0.1:8080"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultCacheMaxSizeMB        = 200
	DefaultCacheCompressionLevel = 3
	DefaultNATSSubject           = "pdf2mp3.jobs.completed"
	// DefaultHistoryKeep bounds the job history; zero keeps everything.
	DefaultHistoryKeep = 500
)

// Speech backends.
const (
	BackendGemini = "gemini"
	BackendNAP    = "nap"
	BackendStub   = "stub"
)

// Config captures runtime configuration gathered from the optional YAML
// file, the PDF2MP3_CONFIG JSON payload and per-key environment overrides.
type Config struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	Backend string `mapstructure:"backend" json:"backend"`
	Model   string `mapstructure:"model" json:"model"`
	Voice   string `mapstructure:"voice" json:"voice"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	NAPAddr string `mapstructure:"nap_addr" json:"nap_addr"`

	SegmentSize       int           `mapstructure:"segment_size" json:"segment_size"`
	MaxRetries        int           `mapstructure:"max_retries" json:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" json:"-"`
	SampleRate        int           `mapstructure:"sample_rate" json:"sample_rate"`
	BitrateKbps       int           `mapstructure:"bitrate_kbps" json:"bitrate_kbps"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" json:"requests_per_minute"`

	CacheDir              string `mapstructure:"cache_dir" json:"cache_dir"`
	CacheMaxSizeMB        int    `mapstructure:"cache_max_size_mb" json:"cache_max_size_mb"`
	CacheCompressionLevel int    `mapstructure:"cache_compression_level" json:"cache_compression_level"`

	HistoryPath string `mapstructure:"history_path" json:"history_path"`
	HistoryKeep int    `mapstructure:"history_keep" json:"history_keep"`
	NATSURL     string `mapstructure:"nats_url" json:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject" json:"nats_subject"`

	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	LogLevel   string `mapstructure:"log_level" json:"log_level"`
	LogFormat  string `mapstructure:"log_format" json:"log_format"`
	Bell       bool   `mapstructure:"bell" json:"bell"`
}

// Defaults returns a Config populated with every default value.
func Defaults() Config {
	return Config{
		Backend:               DefaultBackend,
		Model:                 DefaultModel,
		Voice:                 DefaultVoice,
		SegmentSize:           DefaultSegmentSize,
		MaxRetries:            DefaultMaxRetries,
		InitialDelay:          DefaultInitialDelay,
		SampleRate:            DefaultSampleRate,
		BitrateKbps:           DefaultBitrateKbps,
		CacheMaxSizeMB:        DefaultCacheMaxSizeMB,
		CacheCompressionLevel: DefaultCacheCompressionLevel,
		NATSSubject:           DefaultNATSSubject,
		HistoryKeep:           DefaultHistoryKeep,
		ListenAddr:            DefaultListenAddr,
		LogLevel:              DefaultLogLevel,
		LogFormat:             DefaultLogFormat,
	}
}

// Validate applies defaults and raises an error for out-of-range values.
// A missing API key is not an error here: the pipeline reports it per job.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	switch c.Backend {
	case BackendGemini, BackendStub:
	case BackendNAP:
		if c.NAPAddr == "" {
			return fmt.Errorf("config: nap_addr is required for the nap backend")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want gemini, nap or stub)", c.Backend)
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.NATSSubject == "" {
		c.NATSSubject = DefaultNATSSubject
	}

	c.LogFormat = strings.ToLower(c.LogFormat)
	switch c.LogFormat {
	case "":
		c.LogFormat = DefaultLogFormat
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}

	if c.SegmentSize <= 0 {
		return fmt.Errorf("config: segment_size must be positive, got %d", c.SegmentSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("config: initial_delay must not be negative, got %s", c.InitialDelay)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BitrateKbps != DefaultBitrateKbps {
		return fmt.Errorf("config: bitrate_kbps %d is not supported (only %d)", c.BitrateKbps, DefaultBitrateKbps)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config: requests_per_minute must not be negative, got %d", c.RequestsPerMinute)
	}
	if c.CacheMaxSizeMB < 0 {
		return fmt.Errorf("config: cache_max_size_mb must not be negative, got %d", c.CacheMaxSizeMB)
	}
	if c.HistoryKeep < 0 {
		return fmt.Errorf("config: history_keep must not be negative, got %d", c.HistoryKeep)
	}
	if c.CacheCompressionLevel < 1 || c.CacheCompressionLevel > 22 {
		return fmt.Errorf("config: cache_compression_level must be between 1 and 22, got %d", c.CacheCompressionLevel)
	}
	return nil
}

// UseStub reports whether the offline synthesizer is selected.
func (c Config) UseStub() bool {
	return c.Backend == BackendStub
}
