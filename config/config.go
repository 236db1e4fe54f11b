// Package config loads the settings of a conformance regression from YAML
// files and HWCONFORM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/hwconform/dut/syncfifo"
	"github.com/sarchlab/hwconform/fifo"
	"github.com/sarchlab/hwconform/sim/timing"
)

// EnvPrefix prefixes every environment variable that overrides a setting.
const EnvPrefix = "HWCONFORM_"

// Config holds every setting of a regression.
type Config struct {
	Clock      ClockConfig      `yaml:"clock"`
	Device     DeviceConfig     `yaml:"device"`
	Session    SessionConfig    `yaml:"session"`
	Regression RegressionConfig `yaml:"regression"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Verbosity  int              `yaml:"verbosity"`
}

// ClockConfig describes the clock domain.
type ClockConfig struct {
	Freq    string  `yaml:"freq"`
	PhaseNS float64 `yaml:"phase_ns"`
}

// DeviceConfig describes the device under test.
type DeviceConfig struct {
	DataWidth            int    `yaml:"data_width"`
	AddrWidth            int    `yaml:"addr_width"`
	AlmostFullThreshold  int    `yaml:"almost_full_threshold"`
	AlmostEmptyThreshold int    `yaml:"almost_empty_threshold"`
	Faults               string `yaml:"faults"`
}

// SessionConfig holds the cycle budgets of a session.
type SessionConfig struct {
	ResetCycles int    `yaml:"reset_cycles"`
	QuietCycles int    `yaml:"quiet_cycles"`
	DrainBudget int    `yaml:"drain_budget"`
	WaitBudget  int    `yaml:"wait_budget"`
	MaxCycles   uint64 `yaml:"max_cycles"`
}

// RegressionConfig controls how many seeds run and how the randomized
// scenarios are shaped.
type RegressionConfig struct {
	Seed       int64 `yaml:"seed"`
	Seeds      int   `yaml:"seeds"`
	Parallel   int   `yaml:"parallel"`
	Iterations int   `yaml:"iterations"`
	InitialMin int   `yaml:"initial_min"`
	InitialMax int   `yaml:"initial_max"`
	OpsMin     int   `yaml:"ops_min"`
	OpsMax     int   `yaml:"ops_max"`
}

// RecorderConfig sets where traces are recorded. An empty path disables
// recording.
type RecorderConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig controls the monitoring web server.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	Browser bool `yaml:"browser"`
}

// Default returns the settings of the reference testbench: a 16-bit,
// 16-deep FIFO at 250MHz with 20 random iterations of 50 to 300 operations.
func Default() Config {
	r := fifo.DefaultRandomConfig()

	return Config{
		Clock: ClockConfig{Freq: "250MHz"},
		Device: DeviceConfig{
			DataWidth:            16,
			AddrWidth:            4,
			AlmostFullThreshold:  2,
			AlmostEmptyThreshold: 2,
			Faults:               "none",
		},
		Session: SessionConfig{
			ResetCycles: 2,
			QuietCycles: 2,
			DrainBudget: 1000,
			WaitBudget:  100,
			MaxCycles:   100000,
		},
		Regression: RegressionConfig{
			Seed:       1,
			Seeds:      1,
			Iterations: r.Iterations,
			InitialMin: r.InitialMin,
			InitialMax: r.InitialMax,
			OpsMin:     r.OpsMin,
			OpsMax:     r.OpsMax,
		},
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// LoadEnv loads the given .env files into the environment, without
// overriding variables that are already set, and then applies every
// HWCONFORM_* variable to the config.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("loading env files: %w", err)
		}
	}

	var errs []error

	for _, o := range c.overrides() {
		v, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok {
			continue
		}

		if err := o.set(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	return c.Validate()
}

type override struct {
	name string
	set  func(v string) error
}

func (c *Config) overrides() []override {
	return []override{
		{"CLOCK_FREQ", setString(&c.Clock.Freq)},
		{"CLOCK_PHASE_NS", setFloat(&c.Clock.PhaseNS)},
		{"DATA_WIDTH", setInt(&c.Device.DataWidth)},
		{"ADDR_WIDTH", setInt(&c.Device.AddrWidth)},
		{"ALMOST_FULL_THRESHOLD", setInt(&c.Device.AlmostFullThreshold)},
		{"ALMOST_EMPTY_THRESHOLD", setInt(&c.Device.AlmostEmptyThreshold)},
		{"FAULTS", setString(&c.Device.Faults)},
		{"RESET_CYCLES", setInt(&c.Session.ResetCycles)},
		{"QUIET_CYCLES", setInt(&c.Session.QuietCycles)},
		{"DRAIN_BUDGET", setInt(&c.Session.DrainBudget)},
		{"WAIT_BUDGET", setInt(&c.Session.WaitBudget)},
		{"MAX_CYCLES", setUint(&c.Session.MaxCycles)},
		{"SEED", setInt64(&c.Regression.Seed)},
		{"SEEDS", setInt(&c.Regression.Seeds)},
		{"PARALLEL", setInt(&c.Regression.Parallel)},
		{"ITERATIONS", setInt(&c.Regression.Iterations)},
		{"INITIAL_MIN", setInt(&c.Regression.InitialMin)},
		{"INITIAL_MAX", setInt(&c.Regression.InitialMax)},
		{"OPS_MIN", setInt(&c.Regression.OpsMin)},
		{"OPS_MAX", setInt(&c.Regression.OpsMax)},
		{"RECORDER_PATH", setString(&c.Recorder.Path)},
		{"MONITOR", setBool(&c.Monitor.Enabled)},
		{"MONITOR_PORT", setInt(&c.Monitor.Port)},
		{"MONITOR_BROWSER", setBool(&c.Monitor.Browser)},
		{"VERBOSITY", setInt(&c.Verbosity)},
	}
}

func setString(p *string) func(string) error {
	return func(v string) error {
		*p = v
		return nil
	}
}

func setInt(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}

		*p = n

		return nil
	}
}

func setInt64(p *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return err
		}

		*p = n

		return nil
	}
}

func setUint(p *uint64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 0, 64)
		if err != nil {
			return err
		}

		*p = n

		return nil
	}
}

func setFloat(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}

		*p = f

		return nil
	}
}

func setBool(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}

		*p = b

		return nil
	}
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Freq(); err != nil {
		errs = append(errs, err)
	}

	if c.Clock.PhaseNS < 0 {
		errs = append(errs, fmt.Errorf("clock phase must not be negative"))
	}

	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := c.Faults(); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, c.Session.validate()...)
	errs = append(errs, c.Regression.validate()...)

	if c.Monitor.Port != 0 && (c.Monitor.Port < 1000 || c.Monitor.Port > 65535) {
		errs = append(errs,
			fmt.Errorf("monitor port must be 0 or in [1000, 65535], got %d",
				c.Monitor.Port))
	}

	if c.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("verbosity must not be negative"))
	}

	return errors.Join(errs...)
}

func (s SessionConfig) validate() []error {
	var errs []error

	if s.ResetCycles < 2 {
		errs = append(errs, fmt.Errorf("reset cycles must be at least 2"))
	}

	if s.QuietCycles < 2 {
		errs = append(errs, fmt.Errorf("quiet cycles must be at least 2"))
	}

	if s.DrainBudget < 1 {
		errs = append(errs, fmt.Errorf("drain budget must be at least 1"))
	}

	if s.WaitBudget < 1 {
		errs = append(errs, fmt.Errorf("wait budget must be at least 1"))
	}

	return errs
}

func (r RegressionConfig) validate() []error {
	var errs []error

	if r.Seeds < 1 {
		errs = append(errs, fmt.Errorf("seeds must be at least 1"))
	}

	if r.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative"))
	}

	if r.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must not be negative"))
	}

	if r.InitialMin < 0 || r.InitialMin > r.InitialMax {
		errs = append(errs, fmt.Errorf("initial range [%d, %d] is invalid",
			r.InitialMin, r.InitialMax))
	}

	if r.OpsMin < 0 || r.OpsMin > r.OpsMax {
		errs = append(errs, fmt.Errorf("ops range [%d, %d] is invalid",
			r.OpsMin, r.OpsMax))
	}

	return errs
}

// Freq returns the parsed clock frequency.
func (c Config) Freq() (timing.Freq, error) {
	return timing.ParseFreq(c.Clock.Freq)
}

// Phase returns the offset of the first rising edge.
func (c Config) Phase() timing.VTimeInSec {
	return c.Clock.PhaseNS * 1e-9
}

// Params returns the device parameters.
func (c Config) Params() fifo.Params {
	return fifo.Params{
		DataWidth:            c.Device.DataWidth,
		AddrWidth:            c.Device.AddrWidth,
		AlmostFullThreshold:  c.Device.AlmostFullThreshold,
		AlmostEmptyThreshold: c.Device.AlmostEmptyThreshold,
	}
}

// Faults returns the faults to inject into the device model.
func (c Config) Faults() (syncfifo.Fault, error) {
	return syncfifo.ParseFault(c.Device.Faults)
}

// RandomConfig returns the shape of the randomized scenarios.
func (c Config) RandomConfig() fifo.RandomConfig {
	return fifo.RandomConfig{
		Iterations: c.Regression.Iterations,
		InitialMin: c.Regression.InitialMin,
		InitialMax: c.Regression.InitialMax,
		OpsMin:     c.Regression.OpsMin,
		OpsMax:     c.Regression.OpsMax,
	}
}

// Apply copies the session budgets into a testbench builder.
func (c Config) Apply(b fifo.Builder) fifo.Builder {
	return b.
		WithResetEdges(c.Session.ResetCycles).
		WithQuietEdges(c.Session.QuietCycles).
		WithDrainBudget(c.Session.DrainBudget).
		WithWaitBudget(c.Session.WaitBudget).
		WithMaxCycles(c.Session.MaxCycles)
}
