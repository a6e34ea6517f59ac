// Package config provides configuration management for the ISO downloader.
// It handles loading, validating, and saving the YAML configuration document
// that describes the broker connection, download settings, the scheduler
// cadence, explicit ISO sources and pattern-based discovery rules.
package config

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/nickmerrett/iso-downloader/pkg/errors"
	"github.com/nickmerrett/iso-downloader/pkg/fsutil"
	"github.com/nickmerrett/iso-downloader/pkg/model"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Download  DownloadConfig  `yaml:"download"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Explicit downloads and discovery rules. The yaml keys are shared with
	// every deployed config file and must not change.
	Sources  []*model.Source  `yaml:"isos"`
	Patterns []*model.Pattern `yaml:"iso_globs"`
}

// RabbitMQConfig holds the broker connection settings.
type RabbitMQConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	QueueName string `yaml:"queue_name"`
}

// URL builds the AMQP connection URL for the broker.
func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		url.QueryEscape(r.Username), url.QueryEscape(r.Password), r.Host, r.Port)
}

// DownloadConfig holds the transfer execution settings.
type DownloadConfig struct {
	MaxParallel       int    `yaml:"max_parallel"`
	DownloadDirectory string `yaml:"download_directory"`
	ChunkSize         int    `yaml:"chunk_size"`
	TimeoutSeconds    int    `yaml:"timeout"`

	// Decompress unpacks compressed images (e.g. .iso.xz) after download.
	Decompress bool `yaml:"decompress,omitempty"`
	// PostHook is an optional Tengo script run after each successful download.
	PostHook string `yaml:"post_hook,omitempty"`
}

// Timeout returns the total-operation transfer timeout.
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Supported scheduler frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// SchedulerConfig describes the publish-all cadence.
type SchedulerConfig struct {
	Frequency string `yaml:"frequency"` // daily, weekly or monthly
	Time      string `yaml:"time"`      // HH:MM, 24h clock
}

// Default configuration values.
const (
	DefaultQueueName      = "iso_downloads"
	DefaultMaxParallel    = 3
	DefaultChunkSize      = 8192
	DefaultTimeoutSeconds = 300
	DefaultDownloadDir    = "./downloads"
	DefaultAMQPPort       = 5672

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var scheduleTimeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// DefaultConfig returns a configuration with sensible defaults and no
// configured sources.
func DefaultConfig() *Config {
	return &Config{
		RabbitMQ: RabbitMQConfig{
			Host:      "localhost",
			Port:      DefaultAMQPPort,
			Username:  "guest",
			Password:  "guest",
			QueueName: DefaultQueueName,
		},
		Download: DownloadConfig{
			MaxParallel:       DefaultMaxParallel,
			DownloadDirectory: DefaultDownloadDir,
			ChunkSize:         DefaultChunkSize,
			TimeoutSeconds:    DefaultTimeoutSeconds,
		},
		Scheduler: SchedulerConfig{
			Frequency: FrequencyDaily,
			Time:      "02:00",
		},
	}
}

// LoadConfig loads configuration from a file. A missing file is an error:
// this tool is useless without its source list, so it fails fast instead of
// silently running with defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "invalid config file path")
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrConfigNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves configuration to a file, atomically replacing any
// existing one.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "invalid config file path")
	}

	if err := fsutil.EnsureDir(filepath.Dir(absPath)); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(err, "failed to replace config file")
	}

	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.RabbitMQ.Host == "" {
		c.RabbitMQ.Host = def.RabbitMQ.Host
	}
	if c.RabbitMQ.Port == 0 {
		c.RabbitMQ.Port = def.RabbitMQ.Port
	}
	if c.RabbitMQ.Username == "" {
		c.RabbitMQ.Username = def.RabbitMQ.Username
	}
	if c.RabbitMQ.Password == "" {
		c.RabbitMQ.Password = def.RabbitMQ.Password
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = def.RabbitMQ.QueueName
	}

	if c.Download.MaxParallel == 0 {
		c.Download.MaxParallel = def.Download.MaxParallel
	}
	if c.Download.DownloadDirectory == "" {
		c.Download.DownloadDirectory = def.Download.DownloadDirectory
	}
	if c.Download.ChunkSize == 0 {
		c.Download.ChunkSize = def.Download.ChunkSize
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = def.Download.TimeoutSeconds
	}

	if c.Scheduler.Frequency == "" {
		c.Scheduler.Frequency = def.Scheduler.Frequency
	}
	if c.Scheduler.Time == "" {
		c.Scheduler.Time = def.Scheduler.Time
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	return c.validatePatterns()
}

func (c *Config) validateDownload() error {
	if c.Download.MaxParallel < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.max_parallel must be at least 1")
	}
	if c.Download.ChunkSize < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.chunk_size must be positive")
	}
	if c.Download.TimeoutSeconds < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "download.timeout must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	switch c.Scheduler.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return errors.Wrapf(errors.ErrConfigValidation, "scheduler.frequency %q is not one of daily, weekly, monthly", c.Scheduler.Frequency)
	}
	if !scheduleTimeRe.MatchString(c.Scheduler.Time) {
		return errors.Wrapf(errors.ErrConfigValidation, "scheduler.time %q is not HH:MM", c.Scheduler.Time)
	}
	return nil
}

func (c *Config) validateSources() error {
	names := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			return errors.Wrap(errors.ErrConfigValidation, "iso entry with empty name")
		}
		if names[src.Name] {
			return errors.Wrapf(errors.ErrConfigValidation, "duplicate iso name %q", src.Name)
		}
		names[src.Name] = true
		if src.URL == "" {
			return errors.Wrapf(errors.ErrConfigValidation, "iso %q has no url", src.Name)
		}
		if !src.Type.Valid() {
			return errors.Wrapf(errors.ErrConfigValidation, "iso %q has unsupported type %q", src.Name, src.Type)
		}
	}
	return nil
}

func (c *Config) validatePatterns() error {
	names := make(map[string]bool, len(c.Patterns))
	for _, pat := range c.Patterns {
		if pat.Name == "" {
			return errors.Wrap(errors.ErrConfigValidation, "iso_glob entry with empty name")
		}
		if names[pat.Name] {
			return errors.Wrapf(errors.ErrConfigValidation, "duplicate iso_glob name %q", pat.Name)
		}
		names[pat.Name] = true
		if pat.BaseURL == "" {
			return errors.Wrapf(errors.ErrConfigValidation, "iso_glob %q has no base_url", pat.Name)
		}
		if !pat.Type.Valid() {
			return errors.Wrapf(errors.ErrConfigValidation, "iso_glob %q has unsupported type %q", pat.Name, pat.Type)
		}
		if pat.MaxDepth < 0 {
			return errors.Wrapf(errors.ErrConfigValidation, "iso_glob %q has negative max_depth", pat.Name)
		}
	}
	return nil
}

// EnabledSources returns the explicitly configured sources that are enabled.
func (c *Config) EnabledSources() []*model.Source {
	out := make([]*model.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// EnabledPatterns returns the discovery patterns that are enabled.
func (c *Config) EnabledPatterns() []*model.Pattern {
	out := make([]*model.Pattern, 0, len(c.Patterns))
	for _, pat := range c.Patterns {
		if pat.Enabled {
			out = append(out, pat)
		}
	}
	return out
}

// SetSourceEnabled toggles the enabled flag of the named source. The caller
// is responsible for persisting the change with SaveConfig.
func (c *Config) SetSourceEnabled(name string, enabled bool) error {
	for _, src := range c.Sources {
		if src.Name == name {
			src.Enabled = enabled
			return nil
		}
	}
	return errors.Wrapf(errors.ErrSourceNotFound, "%s", name)
}

// SetPatternEnabled toggles the enabled flag of the named pattern.
func (c *Config) SetPatternEnabled(name string, enabled bool) error {
	for _, pat := range c.Patterns {
		if pat.Name == name {
			pat.Enabled = enabled
			return nil
		}
	}
	return errors.Wrapf(errors.ErrPatternNotFound, "%s", name)
}
