// Package config loads harness settings from svcharness.yaml, SVCHARNESS_*
// environment variables and built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/schmitthub/svcharness/internal/logger"
)

// Config is the root harness configuration.
type Config struct {
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Ready     ReadyConfig     `mapstructure:"ready" yaml:"ready"`
	Ports     PortsConfig     `mapstructure:"ports" yaml:"ports"`
	Service   ServiceConfig   `mapstructure:"service" yaml:"service"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ArtifactsConfig controls where and what diagnostic artifacts are written.
type ArtifactsConfig struct {
	Dir              string `mapstructure:"dir" yaml:"dir"`
	ExportLogs       bool   `mapstructure:"export_logs" yaml:"export_logs"`
	ExportFilesystem bool   `mapstructure:"export_filesystem" yaml:"export_filesystem"`
}

// NetworkConfig names the shared bridge network.
type NetworkConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Driver string `mapstructure:"driver" yaml:"driver"`
}

// ReadyConfig tunes the readiness prober.
type ReadyConfig struct {
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Path     string        `mapstructure:"path" yaml:"path"`
}

// PortsConfig holds the random port ranges for containers and embedded services.
type PortsConfig struct {
	ContainerMin int `mapstructure:"container_min" yaml:"container_min"`
	ContainerMax int `mapstructure:"container_max" yaml:"container_max"`
	ServiceMin   int `mapstructure:"service_min" yaml:"service_min"`
	ServiceMax   int `mapstructure:"service_max" yaml:"service_max"`
}

// ServiceConfig configures embedded service hosts.
type ServiceConfig struct {
	Hostname     string        `mapstructure:"hostname" yaml:"hostname"`
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
	FileEnabled *bool  `mapstructure:"file_enabled" yaml:"file_enabled"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	MaxSizeMB   int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// LoggerConfig converts to the logger package's config type.
func (c LoggingConfig) LoggerConfig() *logger.LoggingConfig {
	return &logger.LoggingConfig{
		FileEnabled: c.FileEnabled,
		MaxSizeMB:   c.MaxSizeMB,
		MaxAgeDays:  c.MaxAgeDays,
		MaxBackups:  c.MaxBackups,
	}
}

// LogsDir returns the configured log directory, defaulting to a logs
// subdirectory of the artifact directory.
func (c *Config) LogsDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(c.Artifacts.Dir, "logs")
}

// DefaultArtifactsDir is where artifacts land when nothing is configured.
func DefaultArtifactsDir() string {
	return filepath.Join(os.TempDir(), "svcharness")
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Artifacts: ArtifactsConfig{
			Dir:              DefaultArtifactsDir(),
			ExportLogs:       true,
			ExportFilesystem: false,
		},
		Network: NetworkConfig{
			Name:   "test-network",
			Driver: "bridge",
		},
		Ready: ReadyConfig{
			Timeout:  30 * time.Second,
			Interval: time.Second,
			Path:     "/status",
		},
		Ports: PortsConfig{
			ContainerMin: 40000,
			ContainerMax: 50000,
			ServiceMin:   50000,
			ServiceMax:   60000,
		},
		Service: ServiceConfig{
			Hostname:     "services",
			StartTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  50,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
	}
}
