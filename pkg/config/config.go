// Package config loads the daemon configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
	"github.com/core-tools/hsu-gamesrv/pkg/supervisor"

	"gopkg.in/yaml.v3"
)

const (
	EnvRuntimeDir = "GAMESRV_RUNTIME_DIR"
	EnvServerJar  = supervisor.ServerJarEnv
	EnvJava       = "GAMESRV_JAVA"

	DefaultRuntimeDir  = "./runtime"
	DefaultControlPort = 50065
	DefaultHTTPTimeout = 5 * time.Minute
)

// Config is the top-level configuration file structure
type Config struct {
	Runtime   RuntimeConfig     `yaml:"runtime"`
	Artifacts ArtifactsConfig   `yaml:"artifacts"`
	Control   ControlConfig     `yaml:"control"`
	Metrics   MetricsConfig     `yaml:"metrics"`
	Logging   logging.ZapConfig `yaml:"logging"`
	Servers   []ServerConfig    `yaml:"servers"`
}

type RuntimeConfig struct {
	RootDir     string        `yaml:"root_dir"`
	JavaPath    string        `yaml:"java_path,omitempty"`
	ServerJar   string        `yaml:"server_jar,omitempty"`
	GraceWindow time.Duration `yaml:"grace_window,omitempty"`
	StopTimeout time.Duration `yaml:"stop_timeout,omitempty"`
	KillWait    time.Duration `yaml:"kill_wait,omitempty"`
}

type ArtifactsConfig struct {
	ManifestURL string        `yaml:"manifest_url,omitempty"`
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`
}

type ControlConfig struct {
	Port int `yaml:"port"`
}

// MetricsConfig enables the Prometheus endpoint when Port is non-zero
type MetricsConfig struct {
	Port int    `yaml:"port,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// ServerConfig is a server definition known to the daemon at boot
type ServerConfig struct {
	domain.ServerDefinition `yaml:",inline"`
	Autostart               bool `yaml:"autostart,omitempty"`
}

// LoadConfigFromFile reads, defaults, applies environment overrides to and
// validates a YAML configuration file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := Parse(data)
	if err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			return nil, domainErr.WithContext("filename", filename)
		}
		return nil, err
	}
	return config, nil
}

// Parse is LoadConfigFromFile without the file read
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}

	ApplyEnvironment(&config, os.LookupEnv)
	setConfigDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var config Config
	ApplyEnvironment(&config, os.LookupEnv)
	setConfigDefaults(&config)
	return &config
}

// ApplyEnvironment lets deployment environment variables win over the file
func ApplyEnvironment(config *Config, lookup func(string) (string, bool)) {
	if value, ok := lookup(EnvRuntimeDir); ok && value != "" {
		config.Runtime.RootDir = value
	}
	if value, ok := lookup(EnvServerJar); ok && value != "" {
		config.Runtime.ServerJar = value
	}
	if value, ok := lookup(EnvJava); ok && value != "" {
		config.Runtime.JavaPath = value
	}
}

func setConfigDefaults(config *Config) {
	if config.Runtime.RootDir == "" {
		config.Runtime.RootDir = DefaultRuntimeDir
	}
	if config.Runtime.JavaPath == "" {
		config.Runtime.JavaPath = supervisor.DefaultJavaPath
	}
	if config.Runtime.GraceWindow == 0 {
		config.Runtime.GraceWindow = supervisor.DefaultGraceWindow
	}
	if config.Runtime.StopTimeout == 0 {
		config.Runtime.StopTimeout = supervisor.DefaultStopTimeout
	}
	if config.Runtime.KillWait == 0 {
		config.Runtime.KillWait = supervisor.DefaultKillWait
	}

	if config.Artifacts.HTTPTimeout == 0 {
		config.Artifacts.HTTPTimeout = DefaultHTTPTimeout
	}

	if config.Control.Port == 0 {
		config.Control.Port = DefaultControlPort
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}

	defaults := logging.DefaultZapConfig()
	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Level
	}
	if config.Logging.Format == "" {
		config.Logging.Format = defaults.Format
	}
	if config.Logging.Output == "" {
		config.Logging.Output = defaults.Output
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateRuntimeConfig(&config.Runtime); err != nil {
		return errors.NewValidationError("invalid runtime configuration", err)
	}

	if err := validatePort("control", config.Control.Port, false); err != nil {
		return err
	}
	if err := validatePort("metrics", config.Metrics.Port, true); err != nil {
		return err
	}
	if config.Metrics.Port != 0 && config.Metrics.Port == config.Control.Port {
		return errors.NewValidationError("metrics port must differ from control port", nil).
			WithContext("port", config.Control.Port)
	}

	if err := validateLogLevel(config.Logging.Level); err != nil {
		return err
	}
	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return errors.NewValidationError(fmt.Sprintf("invalid log format: %s", config.Logging.Format), nil).
			WithContext("valid_formats", "json, console")
	}

	if err := validateServersConfig(config.Servers); err != nil {
		return errors.NewValidationError("invalid servers configuration", err)
	}
	return nil
}

func validateRuntimeConfig(config *RuntimeConfig) error {
	if config.RootDir == "" {
		return errors.NewValidationError("root_dir cannot be empty", nil)
	}
	if config.GraceWindow < 0 || config.StopTimeout < 0 || config.KillWait < 0 {
		return errors.NewValidationError("runtime durations cannot be negative", nil)
	}
	return nil
}

func validatePort(name string, port int, optional bool) error {
	if optional && port == 0 {
		return nil
	}
	if port <= 0 || port > 65535 {
		return errors.NewValidationError(fmt.Sprintf("invalid %s port number: %d", name, port), nil).
			WithContext("valid_range", "1-65535")
	}
	return nil
}

func validateLogLevel(level string) error {
	for _, valid := range []string{"debug", "info", "warn", "error"} {
		if level == valid {
			return nil
		}
	}
	return errors.NewValidationError(fmt.Sprintf("invalid log level: %s", level), nil).
		WithContext("valid_levels", "debug, info, warn, error")
}

func validateServersConfig(servers []ServerConfig) error {
	seenIDs := make(map[string]int)
	seenPorts := make(map[int]string)

	for i, server := range servers {
		if err := domain.ValidateDefinition(server.ServerDefinition); err != nil {
			return errors.NewValidationError(fmt.Sprintf("invalid server at index %d", i), err).
				WithContext("server_id", server.ID)
		}

		if prevIndex, exists := seenIDs[server.ID]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate server ID '%s' found at indices %d and %d", server.ID, prevIndex, i), nil)
		}
		seenIDs[server.ID] = i

		if other, exists := seenPorts[server.Port]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("servers '%s' and '%s' share port %d", other, server.ID, server.Port), nil)
		}
		seenPorts[server.Port] = server.ID
	}
	return nil
}

// SupervisorOptions maps the runtime section onto supervisor options
func (c *Config) SupervisorOptions() supervisor.Options {
	return supervisor.Options{
		RootDir:     c.Runtime.RootDir,
		JavaPath:    c.Runtime.JavaPath,
		ServerJar:   c.Runtime.ServerJar,
		GraceWindow: c.Runtime.GraceWindow,
		StopTimeout: c.Runtime.StopTimeout,
		KillWait:    c.Runtime.KillWait,
	}
}

// Autostart returns the definitions to start at boot, in file order
func (c *Config) Autostart() []domain.ServerDefinition {
	defs := make([]domain.ServerDefinition, 0)
	for _, server := range c.Servers {
		if server.Autostart {
			defs = append(defs, server.ServerDefinition)
		}
	}
	return defs
}
