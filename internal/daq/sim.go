// ABOUTME: Simulated sample-clocked device
// ABOUTME: Manually stepped in tests, self-clocked in realtime mode
package daq

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// SimDevice is an in-process device. In manual mode the sample clock only
// advances through Step; in realtime mode the output sink drives itself at
// the configured rate.
type SimDevice struct {
	name     string
	realtime bool

	mu      sync.Mutex
	sink    *SimSink
	input   *SimInput
	trigger *SimTrigger
	closed  bool
}

// NewSimDevice creates a manually clocked simulated device
func NewSimDevice(name string) *SimDevice {
	return &SimDevice{name: name}
}

// NewRealtimeSimDevice creates a simulated device that clocks itself at the
// configured sample rate once started
func NewRealtimeSimDevice(name string) *SimDevice {
	return &SimDevice{name: name, realtime: true}
}

// Name returns the device name
func (d *SimDevice) Name() string { return d.name }

// OutputSink creates the simulated output stream
func (d *SimDevice) OutputSink(channels []string) (OutputSink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.sink = &SimSink{channels: len(channels), realtime: d.realtime}
	return d.sink, nil
}

// InputSource creates the simulated input stream
func (d *SimDevice) InputSource(channels []string) (InputSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.input = &SimInput{channels: len(channels)}
	return d.input, nil
}

// TriggerLine creates the simulated digital lines
func (d *SimDevice) TriggerLine(lines []string) (TriggerLine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.trigger = &SimTrigger{lines: len(lines)}
	return d.trigger, nil
}

// Close releases the device
func (d *SimDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.sink != nil {
		d.sink.Close()
	}
	if d.input != nil {
		d.input.Close()
	}
	return nil
}

// Step advances the sample clock by n callback periods, consuming one
// queued output frame and firing both stream callbacks per period
func (d *SimDevice) Step(n int) {
	for i := 0; i < n; i++ {
		d.mu.Lock()
		sink, input := d.sink, d.input
		d.mu.Unlock()

		if sink != nil {
			sink.step()
		}
		if input != nil {
			input.step()
		}
	}
}

// Sink returns the current output stream, for test inspection
func (d *SimDevice) Sink() *SimSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink
}

// Trigger returns the current trigger lines, for test inspection
func (d *SimDevice) Trigger() *SimTrigger {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trigger
}

// SimSink is the simulated output stream. The frame queue models the
// hardware output buffer; the generated counter free-runs with the clock
// whether or not data was available (an underrun plays silence).
type SimSink struct {
	channels int
	realtime bool

	mu         sync.Mutex
	cfg        StreamConfig
	configured bool
	started    bool
	closed     bool
	period     int
	frameCb    func()
	doneCb     func(err error)
	queue      chan audio.Frame
	consumed   []audio.Frame
	stopClock  chan struct{}

	generated atomic.Uint64
	underruns atomic.Uint64
}

// Configure sets the stream format and buffer depth
func (s *SimSink) Configure(cfg StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cfg = cfg
	s.configured = true
	return nil
}

// RegisterFrameCallback registers fn to fire once per periodSamples
func (s *SimSink) RegisterFrameCallback(periodSamples int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = periodSamples
	s.frameCb = fn

	depth := 1
	if periodSamples > 0 && s.cfg.BufferSamples >= periodSamples {
		depth = s.cfg.BufferSamples / periodSamples
	}
	s.queue = make(chan audio.Frame, depth)
}

// RegisterDoneCallback registers the stream-finished callback
func (s *SimSink) RegisterDoneCallback(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCb = fn
}

// Write queues one frame, blocking up to timeout when the buffer is full
func (s *SimSink) Write(frame audio.Frame, timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	q := s.queue
	s.mu.Unlock()

	if q == nil {
		return ErrNotConfigured
	}

	if timeout < 0 {
		q <- frame
		return nil
	}

	select {
	case q <- frame:
		return nil
	case <-time.After(timeout):
		return ErrWriteTimeout
	}
}

// Start arms the stream
func (s *SimSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.configured {
		return ErrNotConfigured
	}
	s.started = true

	if s.realtime && s.period > 0 {
		stop := make(chan struct{})
		s.stopClock = stop
		interval := time.Duration(float64(s.period) / float64(s.cfg.SampleRate) * float64(time.Second))
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					s.step()
				}
			}
		}()
	}
	return nil
}

// Stop halts the stream clock; queued frames are discarded with the sink
func (s *SimSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	if s.stopClock != nil {
		close(s.stopClock)
		s.stopClock = nil
	}
	return nil
}

// SamplesGenerated reports total per-channel samples clocked out
func (s *SimSink) SamplesGenerated() uint64 {
	return s.generated.Load()
}

// Underruns reports clock periods that found the queue empty
func (s *SimSink) Underruns() uint64 {
	return s.underruns.Load()
}

// Close releases the stream
func (s *SimSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.started = false
	if s.stopClock != nil {
		close(s.stopClock)
		s.stopClock = nil
	}
	return nil
}

// Queued returns the number of frames waiting in the output buffer
func (s *SimSink) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return len(s.queue)
}

// Consumed returns every frame the simulated hardware has clocked out
func (s *SimSink) Consumed() []audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Frame, len(s.consumed))
	copy(out, s.consumed)
	return out
}

// FireDone invokes the registered done callback, for test use
func (s *SimSink) FireDone(err error) {
	s.mu.Lock()
	cb := s.doneCb
	s.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (s *SimSink) step() {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return
	}
	cb := s.frameCb
	q := s.queue
	s.mu.Unlock()

	if q != nil {
		select {
		case f := <-q:
			s.mu.Lock()
			s.consumed = append(s.consumed, f)
			s.mu.Unlock()
		default:
			s.underruns.Add(1)
		}
	}

	s.generated.Add(uint64(s.period))

	if cb != nil {
		cb()
	}
}

// SimInput is the simulated input stream; reads return silence
type SimInput struct {
	channels int

	mu         sync.Mutex
	cfg        StreamConfig
	configured bool
	started    bool
	closed     bool
	frameCb    func()

	reads atomic.Uint64
}

// Configure sets the stream format and buffer depth
func (s *SimInput) Configure(cfg StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cfg = cfg
	s.configured = true
	return nil
}

// Read fills dst with count acquired frames (silence in simulation)
func (s *SimInput) Read(dst audio.Frame, count int, timeout time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for ch := range dst {
		n := count
		if n > len(dst[ch]) {
			n = len(dst[ch])
		}
		for i := 0; i < n; i++ {
			dst[ch][i] = 0
		}
	}
	s.reads.Add(1)
	return count, nil
}

// RegisterFrameCallback registers fn to fire once per periodSamples
func (s *SimInput) RegisterFrameCallback(periodSamples int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCb = fn
}

// Start arms the stream
func (s *SimInput) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.configured {
		return ErrNotConfigured
	}
	s.started = true
	return nil
}

// Stop halts the stream
func (s *SimInput) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Close releases the stream
func (s *SimInput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.started = false
	return nil
}

// Reads reports how many callback reads have completed
func (s *SimInput) Reads() uint64 {
	return s.reads.Load()
}

func (s *SimInput) step() {
	s.mu.Lock()
	started := s.started
	cb := s.frameCb
	s.mu.Unlock()
	if started && cb != nil {
		cb()
	}
}

// SimTrigger records digital line levels
type SimTrigger struct {
	lines int

	mu     sync.Mutex
	levels []bool
	writes int
}

// Write sets the line levels
func (t *SimTrigger) Write(levels []bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.levels = append([]bool(nil), levels...)
	t.writes++
	return nil
}

// Close releases the lines
func (t *SimTrigger) Close() error { return nil }

// Levels returns the last written line levels
func (t *SimTrigger) Levels() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.levels...)
}

// Writes returns how many times the lines were written
func (t *SimTrigger) Writes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes
}
