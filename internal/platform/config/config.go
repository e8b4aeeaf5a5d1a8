// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20

	// DefaultCorrelationHeader is the header carrying the correlation ID.
	DefaultCorrelationHeader = "X-Correlation-ID"

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28
)

// Log backends.
const (
	LogBackendConsole = "console"
	LogBackendCloud   = "cloud"
	LogBackendTest    = "test"
)

// Config is the root configuration structure.
type Config struct {
	App         AppConfig         `koanf:"app"         validate:"required"`
	Server      ServerConfig      `koanf:"server"      validate:"required"`
	Log         LogConfig         `koanf:"log"         validate:"required"`
	Correlation CorrelationConfig `koanf:"correlation"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Auth        AuthConfig        `koanf:"auth"`
	Client      ClientConfig      `koanf:"client"      validate:"required"`
	Downstream  DownstreamConfig  `koanf:"downstream"  validate:"required"`
}

// AppConfig contains the component settings shared by every request.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required"`
}

// URNPart returns "<name>:<environment>", the application part of problem
// instance URNs.
func (a *AppConfig) URNPart() string {
	return a.Name + ":" + a.Environment
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"omitempty,min=10ms"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string         `koanf:"level"   validate:"required,oneof=trace debug info warn error critical"`
	Format  string         `koanf:"format"  validate:"required,oneof=json text pretty"`
	Backend string         `koanf:"backend" validate:"required,oneof=console cloud test"`
	File    LogFileConfig  `koanf:"file"`
	Cloud   LogCloudConfig `koanf:"cloud"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// LogCloudConfig configures the Cloud Logging backend. An empty project ID
// makes the backend fall back to console logging.
type LogCloudConfig struct {
	ProjectID string `koanf:"project_id"`
}

// CorrelationConfig configures correlation ID propagation.
type CorrelationConfig struct {
	Header string `koanf:"header" validate:"omitempty,header_name"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig contains settings for trusting gateway identity headers.
type AuthConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SubjectHeader string `koanf:"subject_header"`
	RolesHeader   string `koanf:"roles_header"`
	ScopesHeader  string `koanf:"scopes_header"`
}

// ClientConfig contains HTTP client settings for downstream services.
type ClientConfig struct {
	Timeout   time.Duration   `koanf:"timeout"   validate:"required,min=100ms"`
	Transport TransportConfig `koanf:"transport" validate:"required"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// DownstreamConfig describes the service the diagnostics relay forwards to.
type DownstreamConfig struct {
	Name    string `koanf:"name"     validate:"required"`
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// CorrelationHeader returns the configured header or the default.
func (c *Config) CorrelationHeader() string {
	if c.Correlation.Header != "" {
		return c.Correlation.Header
	}

	return DefaultCorrelationHeader
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "ambient-pipeline",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "25s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.backend":          LogBackendConsole,
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,
		"log.cloud.project_id": "",

		"correlation.header": DefaultCorrelationHeader,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.insecure":      true,
		"telemetry.service_name":  "ambient-pipeline",
		"telemetry.sampling_rate": 1.0,

		"auth.enabled":        false,
		"auth.subject_header": "X-User-ID",
		"auth.roles_header":   "X-User-Roles",
		"auth.scopes_header":  "X-User-Scopes",

		"client.timeout":                           "10s",
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"downstream.name":     "downstream",
		"downstream.base_url": "http://localhost:8081/",
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// Profile selects configs/<profile>.yaml.
	Profile string

	// Dir is the directory holding base.yaml and profile files.
	// Defaults to "configs".
	Dir string

	// DotEnv is an optional .env file whose variables are exported before
	// the environment layer is read. Missing files are ignored.
	DotEnv string
}

// Load loads configuration for profile from the default locations.
func Load(profile string) (*Config, error) {
	return LoadWithOptions(Options{Profile: profile, DotEnv: ".env"})
}

// LoadWithOptions loads configuration with the following precedence
// (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from the .env file
//  2. Profile config file (<dir>/{profile}.yaml)
//  3. Base config file (<dir>/base.yaml)
//  4. Default values
func LoadWithOptions(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "configs"
	}

	k := koanf.New(".")

	// 1. Load defaults
	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load base config file if it exists
	err = loadFileIfExists(k, dir+"/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	// 3. Load profile config file if it exists
	if opts.Profile != "" {
		err := loadFileIfExists(k, fmt.Sprintf("%s/%s.yaml", dir, opts.Profile))
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", opts.Profile, err)
		}
	}

	// 4. Export .env variables; real environment variables win
	err = loadDotEnv(opts.DotEnv)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", opts.DotEnv, err)
	}

	// 5. Load environment variables with APP_ prefix
	err = k.Load(env.Provider("APP_", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// nestedSections lists the sub-sections an environment key may address.
var nestedSections = map[string][]string{
	"log":    {"file", "cloud"},
	"client": {"transport"},
}

// envKey maps APP_SERVER_READ_TIMEOUT to server.read_timeout and
// APP_LOG_CLOUD_PROJECT_ID to log.cloud.project_id.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))

	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}

	for _, sub := range nestedSections[section] {
		if field, ok := strings.CutPrefix(rest, sub+"_"); ok {
			return section + "." + sub + "." + field
		}
	}

	return section + "." + rest
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return godotenv.Load(path)
}
