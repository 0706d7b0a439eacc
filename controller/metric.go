package controller

import "sync/atomic"

// ControllerMetrics contains atomic metrics for a controller.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ControllerMetrics struct {
	// LineSendCount indicates the number of lines written, program and ad-hoc.
	LineSendCount atomic.Uint64
	// LineRecvCount indicates the number of lines received from the firmware.
	LineRecvCount atomic.Uint64
	// AckCount indicates the number of "ok" acknowledgments.
	AckCount atomic.Uint64
	// ErrorAckCount indicates the number of "error:n" acknowledgments.
	ErrorAckCount atomic.Uint64
	// UnexpectedAckCount indicates acknowledgments received with nothing in flight.
	UnexpectedAckCount atomic.Uint64
	// MalformedCount indicates lines that could not be parsed.
	MalformedCount atomic.Uint64
	// StatusReportCount indicates the number of status reports received.
	StatusReportCount atomic.Uint64
	// AlarmCount indicates the number of alarms raised by the firmware.
	AlarmCount atomic.Uint64
	// RealtimeSendCount indicates the number of real-time bytes written.
	RealtimeSendCount atomic.Uint64

	// InFlightBytes indicates the bytes charged against the firmware buffer.
	InFlightBytes atomic.Int64
	// QueueLength indicates the program commands not yet acknowledged.
	QueueLength atomic.Int64

	// ConnectCount indicates the number of successful connects.
	ConnectCount atomic.Uint32
	// ConnLostCount indicates the number of connections lost unexpectedly.
	ConnLostCount atomic.Uint32
}

func (m *ControllerMetrics) incLineSendCount() {
	m.LineSendCount.Add(1)
}

func (m *ControllerMetrics) incLineRecvCount() {
	m.LineRecvCount.Add(1)
}

func (m *ControllerMetrics) incAckCount() {
	m.AckCount.Add(1)
}

func (m *ControllerMetrics) incErrorAckCount() {
	m.ErrorAckCount.Add(1)
}

func (m *ControllerMetrics) incUnexpectedAckCount() {
	m.UnexpectedAckCount.Add(1)
}

func (m *ControllerMetrics) incMalformedCount() {
	m.MalformedCount.Add(1)
}

func (m *ControllerMetrics) incStatusReportCount() {
	m.StatusReportCount.Add(1)
}

func (m *ControllerMetrics) incAlarmCount() {
	m.AlarmCount.Add(1)
}

func (m *ControllerMetrics) incRealtimeSendCount() {
	m.RealtimeSendCount.Add(1)
}

func (m *ControllerMetrics) setInFlightBytes(n int) {
	m.InFlightBytes.Store(int64(n))
}

func (m *ControllerMetrics) setQueueLength(n int) {
	m.QueueLength.Store(int64(n))
}

func (m *ControllerMetrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *ControllerMetrics) incConnLostCount() {
	m.ConnLostCount.Add(1)
}
