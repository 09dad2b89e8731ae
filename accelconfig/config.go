// Package accelconfig holds the configuration for the accellog command.
package accelconfig

import (
	"net/url"
	"os"
	"time"

	"gopkg.in/errgo.v1"
	"gopkg.in/yaml.v2"

	"github.com/rogpeppe/accellog/accel"
	"github.com/rogpeppe/accellog/pipeline"
)

// ErrNoCredentials is returned as the cause of a Validate
// error when the device ID or secret is missing.
var ErrNoCredentials = errgo.New("no device credentials provided")

// SecretEnvVar holds the name of the environment variable
// that overrides the secret held in the configuration file.
const SecretEnvVar = "ACCELLOG_SECRET"

const (
	DefaultBrokerURL    = "ws://localhost:8060/stream"
	DefaultLogFile      = "all_accelerometer_data.csv"
	DefaultSnapshotFile = "plot_accelerometer_data.csv"
	DefaultHTTPAddr     = "localhost:8050"
	DefaultLogLevel     = "<root>=INFO"
)

// Config holds the accellog configuration.
type Config struct {
	// BrokerURL holds the websocket URL of the broker.
	BrokerURL string `yaml:"broker-url"`
	// DeviceID and Secret hold the credentials
	// used to authenticate to the broker.
	DeviceID string `yaml:"device-id"`
	Secret   string `yaml:"secret,omitempty"`
	// Variables maps each axis name ("x", "y" or "z")
	// to the name of the remote variable that holds it.
	Variables map[string]string `yaml:"variables"`
	// LogFile holds the path of the file that all records
	// are appended to.
	LogFile string `yaml:"log-file"`
	// SnapshotFile holds the path of the file that
	// holds the most recent batch.
	SnapshotFile string `yaml:"snapshot-file"`
	BatchSize    int    `yaml:"batch-size"`
	// HTTPAddr holds the address the chart server listens on.
	HTTPAddr string `yaml:"http-addr"`
	// TimeZone holds the name of the time zone that timestamps
	// are written in, for example "Europe/London". If it's
	// empty, the local time zone is used.
	TimeZone string `yaml:"time-zone,omitempty"`
	// NTPHost holds the host to get the time from. If it's
	// empty, the system clock is used.
	NTPHost string `yaml:"ntp-host,omitempty"`
	// LogLevel holds a loggo logging configuration
	// specification, for example "<root>=DEBUG".
	LogLevel string `yaml:"log-level"`
}

// Default returns the default configuration. It has
// no credentials, so it is not valid as is.
func Default() *Config {
	return &Config{
		BrokerURL: DefaultBrokerURL,
		Variables: map[string]string{
			"x": "x",
			"y": "y",
			"z": "z",
		},
		LogFile:      DefaultLogFile,
		SnapshotFile: DefaultSnapshotFile,
		BatchSize:    pipeline.DefaultBatchSize,
		HTTPAddr:     DefaultHTTPAddr,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads the configuration from the YAML file at path.
// Fields not mentioned in the file take their default values.
// If the SecretEnvVar environment variable is set, it overrides
// the secret in the file. The returned configuration has been
// validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errgo.Notef(err, "cannot read configuration")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errgo.NoteMask(err, "cannot load "+path, errgo.Is(ErrNoCredentials))
	}
	return cfg, nil
}

// Parse parses the given YAML data as a configuration
// and validates it, as for Load.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Variables are replaced wholesale rather than merged.
	cfg.Variables = nil
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errgo.Notef(err, "cannot parse configuration")
	}
	if cfg.Variables == nil {
		cfg.Variables = Default().Variables
	}
	if secret := os.Getenv(SecretEnvVar); secret != "" {
		cfg.Secret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, errgo.Mask(err, errgo.Is(ErrNoCredentials))
	}
	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (cfg *Config) Validate() error {
	if cfg.DeviceID == "" || cfg.Secret == "" {
		return errgo.WithCausef(nil, ErrNoCredentials, "device ID and secret must both be provided")
	}
	u, err := url.Parse(cfg.BrokerURL)
	if err != nil {
		return errgo.Notef(err, "invalid broker URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errgo.Newf("invalid broker URL %q: scheme must be ws or wss", cfg.BrokerURL)
	}
	if _, err := cfg.Axes(); err != nil {
		return errgo.Mask(err)
	}
	if cfg.LogFile == "" {
		return errgo.Newf("no log file specified")
	}
	if cfg.SnapshotFile == "" {
		return errgo.Newf("no snapshot file specified")
	}
	if cfg.LogFile == cfg.SnapshotFile {
		return errgo.Newf("log file and snapshot file must differ")
	}
	if cfg.BatchSize <= 0 {
		return errgo.Newf("invalid batch size %d", cfg.BatchSize)
	}
	if cfg.HTTPAddr == "" {
		return errgo.Newf("no HTTP address specified")
	}
	if _, err := cfg.Location(); err != nil {
		return errgo.Mask(err)
	}
	return nil
}

// Axes returns the mapping from remote variable name to axis.
func (cfg *Config) Axes() (map[string]accel.Axis, error) {
	axes := make(map[string]accel.Axis)
	for axisName, name := range cfg.Variables {
		axis, err := accel.ParseAxis(axisName)
		if err != nil {
			return nil, errgo.Notef(err, "invalid variables entry")
		}
		if name == "" {
			return nil, errgo.Newf("empty variable name for axis %v", axis)
		}
		if _, ok := axes[name]; ok {
			return nil, errgo.Newf("variable %q used for more than one axis", name)
		}
		axes[name] = axis
	}
	if len(axes) != int(accel.NumAxes) {
		return nil, errgo.Newf("variables must be specified for all of x, y and z")
	}
	return axes, nil
}

// VariableNames returns the remote variable names
// in axis order.
func (cfg *Config) VariableNames() []string {
	names := make([]string, accel.NumAxes)
	for i := range names {
		names[i] = cfg.Variables[accel.Axis(i).String()]
	}
	return names
}

// Location returns the time zone that timestamps
// should be written in.
func (cfg *Config) Location() (*time.Location, error) {
	if cfg.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, errgo.Notef(err, "invalid time zone")
	}
	return loc, nil
}

// Marshal returns the configuration in YAML format.
func (cfg *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errgo.Mask(err)
	}
	return data, nil
}
