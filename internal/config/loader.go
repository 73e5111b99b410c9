package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default configuration file name
	ConfigFileName = "svcharness.yaml"
	// EnvPrefix prefixes every environment override, e.g. SVCHARNESS_NETWORK_NAME.
	EnvPrefix = "SVCHARNESS"
)

// Load reads configuration from path, environment and defaults, in
// decreasing precedence of environment, file, defaults. An empty path looks
// for ConfigFileName in the working directory and tolerates its absence; an
// explicit path that does not exist is a ConfigNotFoundError.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = ConfigFileName
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if explicit {
		return nil, &ConfigNotFoundError{Path: path}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("artifacts.dir", d.Artifacts.Dir)
	v.SetDefault("artifacts.export_logs", d.Artifacts.ExportLogs)
	v.SetDefault("artifacts.export_filesystem", d.Artifacts.ExportFilesystem)
	v.SetDefault("network.name", d.Network.Name)
	v.SetDefault("network.driver", d.Network.Driver)
	v.SetDefault("ready.timeout", d.Ready.Timeout)
	v.SetDefault("ready.interval", d.Ready.Interval)
	v.SetDefault("ready.path", d.Ready.Path)
	v.SetDefault("ports.container_min", d.Ports.ContainerMin)
	v.SetDefault("ports.container_max", d.Ports.ContainerMax)
	v.SetDefault("ports.service_min", d.Ports.ServiceMin)
	v.SetDefault("ports.service_max", d.Ports.ServiceMax)
	v.SetDefault("service.hostname", d.Service.Hostname)
	v.SetDefault("service.start_timeout", d.Service.StartTimeout)
	v.SetDefault("logging.debug", d.Logging.Debug)
	v.SetDefault("logging.file_enabled", true)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
}

// secondsToDurationHookFunc lets bare integers ("90") stand for seconds,
// matching the SVCHARNESS_READY_TIMEOUT convention.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return data, nil
		}
		return time.Duration(n) * time.Second, nil
	}
}

// Validate checks ranges and required names.
func (c *Config) Validate() error {
	var errs []error
	if c.Network.Name == "" {
		errs = append(errs, errors.New("network.name must not be empty"))
	}
	if c.Ready.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ready.timeout must be positive, got %s", c.Ready.Timeout))
	}
	if c.Ready.Interval <= 0 {
		errs = append(errs, fmt.Errorf("ready.interval must be positive, got %s", c.Ready.Interval))
	}
	if c.Ports.ContainerMin <= 0 || c.Ports.ContainerMin >= c.Ports.ContainerMax {
		errs = append(errs, fmt.Errorf("ports.container range [%d, %d) is invalid", c.Ports.ContainerMin, c.Ports.ContainerMax))
	}
	if c.Ports.ServiceMin <= 0 || c.Ports.ServiceMin >= c.Ports.ServiceMax {
		errs = append(errs, fmt.Errorf("ports.service range [%d, %d) is invalid", c.Ports.ServiceMin, c.Ports.ServiceMax))
	}
	return errors.Join(errs...)
}

// ConfigNotFoundError is returned when the config file doesn't exist
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s", e.Path)
}

// IsConfigNotFound returns true if the error is a ConfigNotFoundError
func IsConfigNotFound(err error) bool {
	var nf *ConfigNotFoundError
	return errors.As(err, &nf)
}
