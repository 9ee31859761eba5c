// ABOUTME: Soundcard monitor backend using oto
// ABOUTME: Lets the transport run audibly when no DAQ hardware is present
package daq

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// OtoDevice renders the output channel to the local soundcard. The input
// source acquires silence and the trigger lines are recorded but drive
// nothing; timing comes from a software clock at the configured rate.
type OtoDevice struct {
	name string

	mu     sync.Mutex
	sink   *otoSink
	closed bool
}

// NewOtoDevice creates a soundcard monitor device
func NewOtoDevice(name string) *OtoDevice {
	return &OtoDevice{name: name}
}

// Name returns the device name
func (d *OtoDevice) Name() string { return d.name }

// OutputSink creates the soundcard output stream
func (d *OtoDevice) OutputSink(channels []string) (OutputSink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	d.sink = &otoSink{channels: len(channels)}
	return d.sink, nil
}

// InputSource creates a silent input stream; the monitor backend has no
// acquisition hardware
func (d *OtoDevice) InputSource(channels []string) (InputSource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return &SimInput{channels: len(channels)}, nil
}

// TriggerLine creates recorded-only digital lines
func (d *OtoDevice) TriggerLine(lines []string) (TriggerLine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return &SimTrigger{lines: len(lines)}, nil
}

// Close releases the device
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.sink != nil {
		d.sink.Close()
	}
	return nil
}

// otoSink streams queued frames into an oto player. Voltage samples are
// clipped to [-1, 1] for the soundcard; absolute levels only matter on
// real hardware.
type otoSink struct {
	channels int

	mu         sync.Mutex
	cfg        StreamConfig
	configured bool
	started    bool
	closed     bool
	period     int
	frameCb    func()
	doneCb     func(err error)
	queue      chan audio.Frame
	stopClock  chan struct{}

	otoCtx *oto.Context
	player *oto.Player

	// partial frame carried between Read calls
	pending []byte

	generated atomic.Uint64
}

// Configure initializes the oto context for the stream format
func (s *otoSink) Configure(cfg StreamConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.otoCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return fmt.Errorf("oto context: %w", err)
		}
		<-ready
		s.otoCtx = ctx
	}

	s.cfg = cfg
	s.configured = true
	return nil
}

// RegisterFrameCallback registers fn to fire once per periodSamples
func (s *otoSink) RegisterFrameCallback(periodSamples int, fn func()) {
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
func (s *otoSink) RegisterDoneCallback(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doneCb = fn
}

// Write queues one frame, blocking up to timeout when the buffer is full
func (s *otoSink) Write(frame audio.Frame, timeout time.Duration) error {
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

// Read implements io.Reader for the oto player: interleave queued frames
// as 16-bit PCM, substituting silence when the queue is empty
func (s *otoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	q := s.queue
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	filled := 0
	if len(pending) > 0 {
		filled = copy(p, pending)
		if filled < len(pending) {
			s.stash(pending[filled:])
			return filled, nil
		}
	}

	for filled < len(p) {
		var frame audio.Frame
		if q != nil {
			select {
			case frame = <-q:
			default:
			}
		}
		if frame == nil {
			// Underrun: pad the rest with silence
			for i := filled; i < len(p); i++ {
				p[i] = 0
			}
			return len(p), nil
		}

		raw := interleave16(frame)
		n := copy(p[filled:], raw)
		filled += n
		if n < len(raw) {
			s.stash(raw[n:])
		}
	}
	return filled, nil
}

func (s *otoSink) stash(b []byte) {
	s.mu.Lock()
	s.pending = append(s.pending, b...)
	s.mu.Unlock()
}

// Start begins playback and the software sample clock
func (s *otoSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.configured {
		return ErrNotConfigured
	}

	if s.player == nil {
		s.player = s.otoCtx.NewPlayer(s)
	}
	s.player.Play()
	s.started = true

	if s.period > 0 {
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
					s.generated.Add(uint64(s.period))
					s.mu.Lock()
					cb := s.frameCb
					s.mu.Unlock()
					if cb != nil {
						cb()
					}
				}
			}
		}()
	}
	return nil
}

// Stop pauses playback and the sample clock
func (s *otoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	if s.stopClock != nil {
		close(s.stopClock)
		s.stopClock = nil
	}
	if s.player != nil {
		s.player.Pause()
	}
	return nil
}

// SamplesGenerated reports total per-channel samples clocked out
func (s *otoSink) SamplesGenerated() uint64 {
	return s.generated.Load()
}

// Close releases the stream
func (s *otoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.started = false
	if s.stopClock != nil {
		close(s.stopClock)
		s.stopClock = nil
	}
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	if s.otoCtx != nil {
		s.otoCtx.Suspend()
	}
	return nil
}

// interleave16 converts a voltage frame to interleaved 16-bit PCM bytes
func interleave16(frame audio.Frame) []byte {
	channels := frame.Channels()
	samples := frame.Samples()
	out := make([]byte, samples*channels*2)
	for i := 0; i < samples; i++ {
		for ch := 0; ch < channels; ch++ {
			v := frame[ch][i]
			if v > 1.0 {
				v = 1.0
			} else if v < -1.0 {
				v = -1.0
			}
			s := int16(v * 32767)
			binary.LittleEndian.PutUint16(out[(i*channels+ch)*2:], uint16(s))
		}
	}
	return out
}
