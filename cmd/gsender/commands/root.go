package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-gsender/controller"
	"github.com/arloliu/go-gsender/logger"
	"github.com/arloliu/go-gsender/machine"
)

var (
	// Global flags
	configPath string
	flagPort   string
	flagBaud   int
	flagFW     string
	flagLevel  string
	flagLog    string
	verbose    bool

	// Loaded in PersistentPreRunE
	globalConfig *Config
	globalLogger logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gsender",
	Short: "Stream G-code to GRBL class controllers",
	Long: `gsender - a G-code sender for GRBL and grblHAL controllers.

The port selects the medium:
  /dev/ttyUSB0, COM3        serial port at --baud
  tcp://host:23             raw TCP (telnet style) connection
  ws://host:81              WebSocket (FluidNC, ESP3D)
  sim                       built-in GRBL simulator

Settings are read from the --config YAML file, then from .env and GSENDER_*
environment variables (GSENDER_PORT, GSENDER_BAUD_RATE, GSENDER_FIRMWARE,
GSENDER_UNITS, GSENDER_LOG_LEVEL, GSENDER_LOG_FILE ...), then from flags.

Examples:
  gsender ports
  gsender -p /dev/ttyUSB0 stream part.nc
  gsender -p sim console`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadGlobals,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML settings file")
	pf.StringVarP(&flagPort, "port", "p", "", "port address")
	pf.IntVarP(&flagBaud, "baud", "b", 0, "serial baud rate")
	pf.StringVarP(&flagFW, "firmware", "f", "", "firmware dialect (grbl, grblhal)")
	pf.StringVar(&flagLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flagLog, "log-file", "", "write logs to a rotating file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "print every line sent and received")
}

func loadGlobals(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = flagPort
	}
	if flags.Changed("baud") {
		cfg.BaudRate = flagBaud
	}
	if flags.Changed("firmware") {
		cfg.Firmware = flagFW
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = flagLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = flagLog
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	l, err := cfg.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.SetDefault(l)

	globalConfig = cfg
	globalLogger = l

	return nil
}

// connect creates a controller from the global configuration and connects
// it to the configured port.
func connect(ctx context.Context) (*controller.Controller, error) {
	cfg := globalConfig
	if cfg.Port == "" {
		return nil, errors.New("no port given, use --port or GSENDER_PORT")
	}

	settings, err := cfg.Settings(globalLogger)
	if err != nil {
		return nil, err
	}

	ctrl := controller.New(ctx, settings)
	if err := ctrl.Connect(ctx, cfg.Firmware, cfg.Port, cfg.BaudRate); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Port, err)
	}

	return ctrl, nil
}

// printer writes listener messages to the command output.
type printer struct {
	cmd *cobra.Command
}

var _ controller.Listener = printer{}

func (p printer) OnMessage(msgType controller.MessageType, text string) {
	out := p.cmd.OutOrStdout()
	if msgType == controller.MessageError {
		out = p.cmd.ErrOrStderr()
	}
	fmt.Fprintf(out, "[%s] %s\n", msgType, text)
}

func (printer) OnStateChange(machine.State) {}
