// ABOUTME: Hardware I/O interfaces for sample-clocked streaming
// ABOUTME: Defines output sink, input source, trigger line and device handles
package daq

import (
	"errors"
	"time"

	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// WaitInfinitely disables the timeout on a read or write. Only input reads
// driven by the hardware's own clock may use it.
const WaitInfinitely time.Duration = -1

var (
	ErrWriteTimeout  = errors.New("daq: write timed out")
	ErrNotConfigured = errors.New("daq: stream not configured")
	ErrClosed        = errors.New("daq: stream closed")
	ErrStopped       = errors.New("daq: stream stopped")
)

// StreamConfig describes one continuous stream on a device
type StreamConfig struct {
	SampleRate    int
	Channels      int
	BufferSamples int // per-channel hardware queue depth
}

// OutputSink is a continuously sample-clocked output stream. The registered
// frame callback fires once per periodSamples of generated output and must
// never block unboundedly or panic through to the driver.
type OutputSink interface {
	Configure(cfg StreamConfig) error
	Write(frame audio.Frame, timeout time.Duration) error
	RegisterFrameCallback(periodSamples int, fn func())
	RegisterDoneCallback(fn func(err error))
	Start() error
	Stop() error

	// SamplesGenerated reports the hardware's total per-channel generated
	// sample count. Reset semantics across stop/start are device specific;
	// callers must baseline it per session.
	SamplesGenerated() uint64

	Close() error
}

// InputSource is a continuously sample-clocked input stream
type InputSource interface {
	Configure(cfg StreamConfig) error
	Read(dst audio.Frame, count int, timeout time.Duration) (int, error)
	RegisterFrameCallback(periodSamples int, fn func())
	Start() error
	Stop() error
	Close() error
}

// TriggerLine is a set of digital lines used to start output and input
// streams on the same clock edge
type TriggerLine interface {
	Write(levels []bool) error
	Close() error
}

// Device is one piece of hardware from which streams are created. Stream
// handles live at most as long as their device.
type Device interface {
	Name() string
	OutputSink(channels []string) (OutputSink, error)
	InputSource(channels []string) (InputSource, error)
	TriggerLine(lines []string) (TriggerLine, error)
	Close() error
}

// Opener opens a named hardware device
type Opener func(name string) (Device, error)
