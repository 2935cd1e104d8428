package link

import (
	"sync/atomic"
)

// Metrics contains atomic counters for a client link.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CallCount indicates the number of calls issued.
	CallCount atomic.Uint64
	// CallSuccessCount indicates the number of calls answered with ACK.
	CallSuccessCount atomic.Uint64
	// CallTimeoutCount indicates the number of calls that exhausted retries.
	CallTimeoutCount atomic.Uint64
	// CallRejectCount indicates the number of calls answered with a NACK.
	CallRejectCount atomic.Uint64

	// FrameSendCount indicates the number of frames written, resends included.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of candidate frames received.
	FrameRecvCount atomic.Uint64
	// DecodeErrorCount indicates the number of received frames that failed to decode.
	DecodeErrorCount atomic.Uint64
	// StaleFrameCount indicates the number of frames ignored for a sequence mismatch.
	StaleFrameCount atomic.Uint64

	// RetryCount indicates the number of backoff-governed retries.
	RetryCount atomic.Uint64
	// FastResendCount indicates the number of BAD_CS fast resends.
	FastResendCount atomic.Uint64

	// ReconnectCount indicates the number of reconnect attempts.
	ReconnectCount atomic.Uint64
	// ReconnectRetryGauge indicates the attempts of the running reconnect sequence.
	ReconnectRetryGauge atomic.Uint32
}

func (m *Metrics) incCallCount() {
	m.CallCount.Add(1)
}

func (m *Metrics) incCallSuccessCount() {
	m.CallSuccessCount.Add(1)
}

func (m *Metrics) incCallTimeoutCount() {
	m.CallTimeoutCount.Add(1)
}

func (m *Metrics) incCallRejectCount() {
	m.CallRejectCount.Add(1)
}

func (m *Metrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *Metrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *Metrics) incDecodeErrorCount() {
	m.DecodeErrorCount.Add(1)
}

func (m *Metrics) incStaleFrameCount() {
	m.StaleFrameCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incFastResendCount() {
	m.FastResendCount.Add(1)
}

func (m *Metrics) incReconnectCount() {
	m.ReconnectCount.Add(1)
	m.ReconnectRetryGauge.Add(1)
}

func (m *Metrics) resetReconnectRetryGauge() {
	m.ReconnectRetryGauge.Store(0)
}
