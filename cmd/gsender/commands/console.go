package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-gsender/controller"
	"github.com/arloliu/go-gsender/firmware"
	"github.com/arloliu/go-gsender/machine"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive controller console",
	Long: `Interactive controller console.

Lines are sent to the firmware as G-code. Lines starting with ':' are
console commands:

  :status                  print the machine state
  :pause                   feed hold, or resume a held machine
  :cancel                  cancel the running stream
  :reset                   soft reset
  :unlock                  clear the alarm lock ($X)
  :home                    run the homing cycle ($H)
  :check                   toggle check mode ($C)
  :parser                  request the parser state
  :zero [axis]             zero the work coordinates
  :wpos <axis> <expr>      set a work coordinate, e.g. ":wpos x # / 2"
  :jog X10 Y-5 F500        jog by a distance
  :jogcancel               cancel a jog
  :probe <axis> <dist> <feed>
  :return                  return to the work origin
  :ovr <name>              send an override, e.g. feed+10, rapid-50
  :send <file>             stream a file in the background
  :progress                print the stream progress
  :quit                    disconnect and exit`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Disconnect() }()

	ctrl.AddListener(printer{cmd: cmd})

	c := newConsole(ctrl, cmd.OutOrStdout())
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

type console struct {
	ctrl   *controller.Controller
	out    io.Writer
	status StatusLine
}

func newConsole(ctrl *controller.Controller, out io.Writer) *console {
	return &console{
		ctrl:   ctrl,
		out:    out,
		status: StatusLine{Styles: NewStyles(DefaultTheme)},
	}
}

var errUsage = errors.New("usage")

// exec runs one console line. It reports true when the console should exit.
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, ":") {
		return false, c.ctrl.SendGcodeCommand(line)
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return false, errUsage
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "q", "exit":
		return true, nil
	case "status":
		fmt.Fprintln(c.out, c.status.Render(c.ctrl.State(), c.ctrl.Progress()))
		return false, c.ctrl.QueryStatus()
	case "progress":
		p := c.ctrl.Progress()
		fmt.Fprintf(c.out, "sent %d, acknowledged %d, failed %d of %d, buffer %d/%d\n",
			p.Sent, p.Acknowledged, p.Failed, p.Total, p.InFlightBytes, p.Capacity)
		return false, nil
	case "pause":
		return false, c.ctrl.PauseResume()
	case "cancel":
		return false, c.ctrl.Cancel()
	case "reset":
		return false, c.ctrl.IssueSoftReset()
	case "unlock":
		return false, c.ctrl.KillAlarmLock()
	case "home":
		return false, c.ctrl.PerformHomingCycle()
	case "check":
		return false, c.ctrl.ToggleCheckMode()
	case "parser":
		return false, c.ctrl.RequestParserState()
	case "jogcancel":
		return false, c.ctrl.CancelJog()
	case "return":
		return false, c.ctrl.ReturnToZero()
	case "zero":
		return false, c.zero(args)
	case "wpos":
		return false, c.workPosition(args)
	case "jog":
		return false, c.jog(args)
	case "probe":
		return false, c.probe(ctx, args)
	case "ovr":
		return false, c.override(args)
	case "send":
		return false, c.send(args)
	default:
		return false, fmt.Errorf("unknown command %q", verb)
	}
}

func (c *console) units() machine.Units {
	if u := c.ctrl.State().Units; u != machine.UnitsUnknown {
		return u
	}

	return machine.UnitsMM
}

func (c *console) zero(args []string) error {
	if len(args) == 0 {
		return c.ctrl.ResetCoordinatesToZero()
	}

	axis, err := machine.ParseAxis(args[0])
	if err != nil {
		return err
	}

	return c.ctrl.ResetCoordinateToZero(axis)
}

func (c *console) workPosition(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: :wpos <axis> <expr>", errUsage)
	}

	axis, err := machine.ParseAxis(args[0])
	if err != nil {
		return err
	}

	return c.ctrl.SetWorkPositionUsingExpression(axis, strings.Join(args[1:], " "))
}

// jog parses words such as "X10 Y-5 F500".
func (c *console) jog(args []string) error {
	p := machine.NewPosition(c.units())
	feed := 0.0
	for _, word := range args {
		if len(word) < 2 {
			return fmt.Errorf("%w: bad jog word %q", errUsage, word)
		}
		v, err := strconv.ParseFloat(word[1:], 64)
		if err != nil {
			return fmt.Errorf("%w: bad jog word %q", errUsage, word)
		}
		if word[0] == 'F' || word[0] == 'f' {
			feed = v
			continue
		}
		axis, err := machine.ParseAxis(word[:1])
		if err != nil {
			return err
		}
		p = p.With(axis, v)
	}

	return c.ctrl.Jog(p, feed)
}

func (c *console) probe(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("%w: :probe <axis> <distance> <feed>", errUsage)
	}

	axis, err := machine.ParseAxis(args[0])
	if err != nil {
		return err
	}
	distance, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: distance %q", errUsage, args[1])
	}
	feed, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("%w: feed %q", errUsage, args[2])
	}

	res, err := c.ctrl.Probe(ctx, axis, feed, distance, c.units())
	if err != nil {
		return err
	}

	if res.Success {
		fmt.Fprintf(c.out, "probe contact at %s\n", res.Position)
	} else {
		fmt.Fprintln(c.out, "probe: no contact")
	}

	return nil
}

func (c *console) override(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: :ovr <name>", errUsage)
	}

	o, ok := firmware.ParseOverride(strings.ToLower(args[0]))
	if !ok {
		return fmt.Errorf("unknown override %q", args[0])
	}

	return c.ctrl.SendOverrideCommand(o)
}

func (c *console) send(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: :send <file>", errUsage)
	}
	if _, err := os.Stat(args[0]); err != nil {
		return err
	}

	if err := c.ctrl.LoadProgram(controller.ReaderProgram{Path: args[0]}); err != nil {
		return err
	}

	return c.ctrl.Send()
}
