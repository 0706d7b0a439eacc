package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-gsender/controller"
	"github.com/arloliu/go-gsender/machine"
)

var (
	streamCheckMode bool
	streamInterval  time.Duration
)

var streamCmd = &cobra.Command{
	Use:   "stream <file>",
	Short: "Stream a G-code file",
	Long: `Stream a G-code file and wait until the machine is idle again.

Ctrl-C cancels the stream with a feed hold and a soft reset.

Examples:
  gsender -p /dev/ttyUSB0 stream part.nc
  gsender -p sim stream --check part.nc`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().BoolVar(&streamCheckMode, "check", false, "run the program in check mode")
	streamCmd.Flags().DurationVar(&streamInterval, "status-interval", time.Second, "status line interval, 0 disables it")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Disconnect() }()

	ctrl.AddListener(printer{cmd: cmd})

	if streamCheckMode {
		if err := enterCheckMode(ctx, ctrl); err != nil {
			return err
		}
	}

	if err := ctrl.LoadProgram(controller.ReaderProgram{Path: path}); err != nil {
		return err
	}
	if err := ctrl.Send(); err != nil {
		return err
	}

	return waitStream(ctx, ctrl, cmd.ErrOrStderr(), streamInterval)
}

func enterCheckMode(ctx context.Context, ctrl *controller.Controller) error {
	if ctrl.State().RunState == machine.RunStateCheck {
		return nil
	}
	if err := ctrl.ToggleCheckMode(); err != nil {
		return err
	}

	return waitRunState(ctx, ctrl, machine.RunStateCheck)
}

func waitRunState(ctx context.Context, ctrl *controller.Controller, want machine.RunState) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for ctrl.State().RunState != want {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}

// waitStream waits until the stream ends and the machine stops moving,
// printing a status line every interval. Canceling ctx cancels the stream.
func waitStream(ctx context.Context, ctrl *controller.Controller, w io.Writer, interval time.Duration) error {
	status := StatusLine{Styles: NewStyles(DefaultTheme)}

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()

	var report <-chan time.Time
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		report = t.C
	}

	for {
		select {
		case <-ctx.Done():
			if err := ctrl.Cancel(); err != nil {
				return err
			}
			return ctx.Err()

		case <-report:
			fmt.Fprintln(w, status.Render(ctrl.State(), ctrl.Progress()))

		case <-poll.C:
			if ctrl.ConnState() != controller.ConnectedState {
				return controller.ErrConnectionLost
			}
			if ctrl.IsStreaming() {
				continue
			}

			st := ctrl.State()
			if st.RunState.IsMoving() {
				// status polling may be off
				_ = ctrl.QueryStatus()
				continue
			}
			fmt.Fprintln(w, status.Render(st, ctrl.Progress()))

			return streamResult(ctrl.Progress(), st)
		}
	}
}

func streamResult(p controller.Progress, st machine.State) error {
	switch {
	case st.IsAlarm():
		return fmt.Errorf("%w: ALARM:%d after %d of %d lines", controller.ErrAlarmActive, st.AlarmCode, p.Acknowledged+p.Failed, p.Total)
	case !p.Done():
		return fmt.Errorf("stream aborted after %d of %d lines", p.Acknowledged+p.Failed, p.Total)
	case p.Failed > 0:
		return fmt.Errorf("%d of %d lines failed", p.Failed, p.Total)
	default:
		return nil
	}
}
