// Package controller streams G-code programs to GRBL family firmware over a
// line oriented transport and keeps a live model of the machine.
//
// A Controller combines:
//   - a Command Queue holding the program until every line is acknowledged,
//   - a flow-control dispatcher charging the wire size of every program line
//     against the firmware receive buffer (character counting),
//   - the machine.Tracker folding status reports, alarms, probe and parser
//     state reports into a machine.State,
//   - a real-time channel for overrides, feed hold, cycle start, jog cancel
//     and soft reset, which bypasses the buffer,
//   - a listener set notified of messages and state changes.
//
// Goroutines:
// A connected session runs three tasks: the reader, which consumes firmware
// lines and never writes; the sender, the only goroutine writing lines, which
// serves ad-hoc requests and fills the buffer from the queue; and the status
// poller writing the status query byte at the configured interval.
//
// Usage:
//
//	settings, _ := controller.NewSettings(controller.WithStatusPollInterval(200 * time.Millisecond))
//	ctrl := controller.New(ctx, settings)
//	if err := ctrl.Connect(ctx, "grbl", "/dev/ttyUSB0", 115200); err != nil {
//	    return err
//	}
//	defer ctrl.Disconnect()
//
//	_ = ctrl.LoadProgram(controller.ReaderProgram{Path: "part.nc"})
//	if err := ctrl.Send(); err != nil {
//	    return err
//	}
package controller
