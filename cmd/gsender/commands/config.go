package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-gsender/controller"
	"github.com/arloliu/go-gsender/internal/grblsim"
	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
	"github.com/arloliu/go-gsender/transport"
)

// SimPort is the port name connecting to the built-in GRBL simulator.
const SimPort = "sim"

const envPrefix = "GSENDER_"

// Config is the CLI configuration, read from a YAML file and overridden by
// GSENDER_* environment variables and flags.
type Config struct {
	Port               string        `yaml:"port"`
	BaudRate           int           `yaml:"baud_rate"`
	Firmware           string        `yaml:"firmware"`
	BufferCapacity     int           `yaml:"buffer_capacity"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	Units              string        `yaml:"units"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout"`
	SafetyHeight       float64       `yaml:"safety_height"`
	PauseOnError       bool          `yaml:"pause_on_error"`
	Verbose            bool          `yaml:"verbose"`
	Log                LogConfig     `yaml:"log"`
}

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		BaudRate:           transport.DefaultBaudRate,
		Firmware:           controller.DefaultFirmware,
		StatusPollInterval: controller.DefaultStatusPollInterval,
		Units:              "mm",
		ConnectTimeout:     controller.DefaultConnectTimeout,
		ProbeTimeout:       controller.DefaultProbeTimeout,
		SafetyHeight:       controller.DefaultSafetyHeight,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig reads path over the defaults, then applies .env and the
// GSENDER_* environment. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides fields from GSENDER_* variables found by lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n

		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(envPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = b

		return nil
	}

	str("PORT", &c.Port)
	str("FIRMWARE", &c.Firmware)
	str("UNITS", &c.Units)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup(envPrefix + "STATUS_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSTATUS_POLL_INTERVAL: %w", envPrefix, err)
		}
		c.StatusPollInterval = d
	}

	return errors.Join(
		num("BAUD_RATE", &c.BaudRate),
		num("BUFFER_CAPACITY", &c.BufferCapacity),
		flag("PAUSE_ON_ERROR", &c.PauseOnError),
		flag("VERBOSE", &c.Verbose),
	)
}

// Options converts the configuration into controller options.
func (c *Config) Options(l logger.Logger) ([]controller.Option, error) {
	units, err := machine.ParseUnits(c.Units)
	if err != nil {
		return nil, err
	}

	opts := []controller.Option{
		controller.WithFirmware(c.Firmware),
		controller.WithBufferCapacity(c.BufferCapacity),
		controller.WithStatusPollInterval(c.StatusPollInterval),
		controller.WithUnits(units),
		controller.WithConnectTimeout(c.ConnectTimeout),
		controller.WithProbeTimeout(c.ProbeTimeout),
		controller.WithSafetyHeight(c.SafetyHeight),
		controller.WithPauseOnError(c.PauseOnError),
		controller.WithVerbose(c.Verbose),
		controller.WithLogger(l),
	}
	if c.Port == SimPort {
		simOpts := []grblsim.Option{grblsim.WithLogger(l)}
		if strings.EqualFold(c.Firmware, "grblhal") {
			simOpts = append(simOpts, grblsim.WithGrblHAL())
		}
		opts = append(opts, controller.WithOpener(func(_ context.Context, _ string, _ int) (transport.Transport, error) {
			return grblsim.New(simOpts...), nil
		}))
	}

	return opts, nil
}

// Settings builds controller settings from the configuration.
func (c *Config) Settings(l logger.Logger) (*controller.Settings, error) {
	opts, err := c.Options(l)
	if err != nil {
		return nil, err
	}

	return controller.NewSettings(opts...)
}

// NewLogger creates the CLI logger: a rotating JSON log file when Log.File is
// set, colored console output on stderr otherwise.
func (c *Config) NewLogger(stderr io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}

	if c.Log.File == "" {
		return logger.NewSlogWithWriter(stderr, level, false, true), nil
	}

	w := &lumberjack.Logger{
		Filename:   c.Log.File,
		MaxSize:    c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAge:     c.Log.MaxAgeDays,
		Compress:   true,
	}

	return logger.NewSlogWithWriter(w, level, false, false), nil
}
