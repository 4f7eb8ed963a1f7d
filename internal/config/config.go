package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/reactive/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reactive.json"

	// YAMLConfigFileName is the YAML alternative, used when no
	// reactive.json is present.
	YAMLConfigFileName = "reactive.yaml"

	// DefaultPort is the default inspector server port.
	DefaultPort = 7070

	// DefaultHost is the default inspector server host.
	DefaultHost = "localhost"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "reactive"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "reactive"

	// DefaultBufferSize is the default number of events kept by devtools.
	DefaultBufferSize = 256

	// DefaultShutdownTimeout is the default graceful shutdown window.
	DefaultShutdownTimeout = "10s"

	// DefaultMaxReruns is the default consecutive self-rerun limit.
	DefaultMaxReruns = 100

	// DefaultMaxEmitDepth is the default synchronous emit nesting limit.
	DefaultMaxEmitDepth = 10000
)

// Config represents the complete reactive.json configuration.
type Config struct {
	// Name identifies the runtime in logs and telemetry.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Log contains logger configuration.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Debug contains runtime debug switches.
	Debug DebugConfig `json:"debug,omitempty" yaml:"debug,omitempty"`

	// Budget bounds runaway notification cycles.
	Budget BudgetConfig `json:"budget,omitempty" yaml:"budget,omitempty"`

	// Server contains inspector server configuration.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`

	// Devtools contains live inspector configuration.
	Devtools DevtoolsConfig `json:"devtools,omitempty" yaml:"devtools,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// DebugConfig mirrors the runtime's debug switches.
type DebugConfig struct {
	LogEffectRuns bool `json:"logEffectRuns,omitempty" yaml:"logEffectRuns,omitempty"`
	LogDisposals  bool `json:"logDisposals,omitempty" yaml:"logDisposals,omitempty"`
	LogBudget     bool `json:"logBudget,omitempty" yaml:"logBudget,omitempty"`
}

// BudgetConfig contains the runtime's rerun and nesting limits.
type BudgetConfig struct {
	// MaxReruns is the number of consecutive self-triggered reruns allowed.
	MaxReruns int `json:"maxReruns,omitempty" yaml:"maxReruns,omitempty"`

	// MaxEmitDepth is the maximum nesting of synchronous emits.
	MaxEmitDepth int `json:"maxEmitDepth,omitempty" yaml:"maxEmitDepth,omitempty"`
}

// ServerConfig contains inspector server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// ShutdownTimeout is how long in-flight requests get on shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and registers the metrics observer.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// Subsystem is inserted between namespace and metric name.
	Subsystem string `json:"subsystem,omitempty" yaml:"subsystem,omitempty"`

	// Path is the HTTP path of the metrics endpoint.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled registers the tracing observer.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// TracerName is the instrumentation name passed to the tracer provider.
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`

	// SkipEmits drops spans for emits, keeping effect runs and disposals.
	SkipEmits bool `json:"skipEmits,omitempty" yaml:"skipEmits,omitempty"`
}

// DevtoolsConfig contains live inspector settings.
type DevtoolsConfig struct {
	// Enabled mounts the inspector routes.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BufferSize is the number of recent events kept for /events.
	BufferSize int `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`

	// EventsPerSecond limits the events streamed to each websocket client.
	// Zero means unlimited.
	EventsPerSecond float64 `json:"eventsPerSecond,omitempty" yaml:"eventsPerSecond,omitempty"`

	// AllowedOrigins lists origins accepted by the websocket endpoint.
	// Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Name: "reactive",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Budget: BudgetConfig{
			MaxReruns:    DefaultMaxReruns,
			MaxEmitDepth: DefaultMaxEmitDepth,
		},
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
			Path:      "/metrics",
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Devtools: DevtoolsConfig{
			Enabled:    true,
			BufferSize: DefaultBufferSize,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for reactive.json, then reactive.yaml, in the directory.
func Load(dir string) (*Config, error) {
	if path, ok := configFile(dir); ok {
		return LoadFile(path)
	}
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// configFile returns the config file present in dir.
func configFile(dir string) (string, bool) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C003").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'reactive init' to write a default configuration")
		}
		return nil, errors.New("C001").Wrap(err)
	}

	unmarshal, format := json.Unmarshal, "JSON"
	if isYAML(path) {
		unmarshal, format = yaml.Unmarshal, "YAML"
	}

	cfg := New()
	name := filepath.Base(path)
	if err := unmarshal(data, cfg); err != nil {
		return nil, errors.New("C001").
			WithDetail("Failed to parse " + name + ": " + err.Error()).
			WithSuggestion("Check that " + name + " is valid " + format)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// path has a .yaml or .yml extension and as JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("C001").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("C001").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	def := New()

	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Budget.MaxReruns == 0 {
		c.Budget.MaxReruns = DefaultMaxReruns
	}
	if c.Budget.MaxEmitDepth == 0 {
		c.Budget.MaxEmitDepth = DefaultMaxEmitDepth
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}

	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}

	if c.Devtools.BufferSize == 0 {
		c.Devtools.BufferSize = DefaultBufferSize
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", "Port must be between 0 and 65535")
	}
	if c.Budget.MaxReruns < 1 {
		return invalid("budget.maxReruns", "maxReruns must be at least 1")
	}
	if c.Budget.MaxEmitDepth < 1 {
		return invalid("budget.maxEmitDepth", "maxEmitDepth must be at least 1")
	}
	if c.Devtools.EventsPerSecond < 0 {
		return invalid("devtools.eventsPerSecond", "eventsPerSecond must not be negative")
	}
	if c.Devtools.BufferSize < 1 {
		return invalid("devtools.bufferSize", "bufferSize must be at least 1")
	}
	if _, err := c.LogLevel(); err != nil {
		return invalid("log.level", "Level must be one of debug, info, warn, error").Wrap(err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return invalid("log.format", "Format must be \"text\" or \"json\"")
	}
	if d, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil || d < 0 {
		return invalid("server.shutdownTimeout", "shutdownTimeout must be a non-negative duration such as \"10s\"")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path", "Path must start with /")
	}
	return nil
}

func invalid(field, detail string) *errors.Diagnostic {
	return errors.New("C002").With("field", field).WithDetail(detail)
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// NewLogger builds the logger described by the Log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.LogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Address returns the listen address for the inspector server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// URL returns the base URL of the inspector server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// ShutdownTimeout returns the parsed shutdown window, falling back to the
// default for unparsable values.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, ok := configFile(dir)
	return ok
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing reactive.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("C003").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'reactive init' to write a default configuration")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent that has one.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
