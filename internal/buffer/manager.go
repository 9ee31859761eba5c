// ABOUTME: Frame buffer manager producing hardware-ready output frames
// ABOUTME: Handles channel mapping, scaling, preload and crossfade transitions
package buffer

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"

	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// quickFadeMaxSamples bounds the anti-click ramp used when two files cannot
// be crossfaded sample for sample
const quickFadeMaxSamples = 128

var ErrNoNext = errors.New("buffer: no next file preloaded")

// Config sets the fixed output format of a Manager
type Config struct {
	SamplesPerFrame  int
	Channels         int
	VoltageScale     float64
	CrossfadeSamples int64
	FlipStereo       bool
}

// Stats counts frame production events since the manager was created
type Stats struct {
	FramesProduced      uint64
	Crossfades          uint64
	RateTransitions     uint64
	SeamlessTransitions uint64
	DecodeFaults        uint64
}

// TransitionInfo describes the pending transition state for status reports
type TransitionInfo struct {
	NextFile                string `json:"next_file,omitempty"`
	Pending                 bool   `json:"pending"`
	CrossfadeActive         bool   `json:"crossfade_active"`
	CrossfadePos            int64  `json:"crossfade_pos,omitempty"`
	CrossfadeTotal          int64  `json:"crossfade_total,omitempty"`
	RequiresReconfiguration bool   `json:"requires_reconfiguration"`
}

// Manager turns decoded streams into fixed-size output frames. Every frame
// it returns is exactly SamplesPerFrame long and Channels wide; short source
// reads are zero padded. Voltage scale and stereo flip are adjustable from
// other goroutines while frames are being produced.
type Manager struct {
	cfg Config

	scaleBits atomic.Uint64
	flip      atomic.Bool

	mu      sync.Mutex
	current *Cursor
	next    *Cursor

	xfadeActive bool
	xfadePos    int64
	xfadeTotal  int64

	fadeInSamples int

	stats Stats
}

// New creates a manager for the given output format
func New(cfg Config) *Manager {
	m := &Manager{cfg: cfg}
	scale := cfg.VoltageScale
	if scale <= 0 {
		scale = 1
	}
	m.scaleBits.Store(math.Float64bits(scale))
	m.flip.Store(cfg.FlipStereo)
	return m
}

// LoadCurrent opens path as the active stream starting at startSample,
// replacing any previous stream. A pending next file survives the reload;
// an in-progress crossfade does not.
func (m *Manager) LoadCurrent(path string, startSample int64) (audio.StreamInfo, error) {
	cur, err := NewCursor(path, startSample)
	if err != nil {
		return audio.StreamInfo{}, err
	}

	m.mu.Lock()
	if m.current != nil {
		m.current.Close()
	}
	m.current = cur
	m.xfadeActive = false
	m.xfadePos = 0
	m.xfadeTotal = 0
	m.fadeInSamples = 0
	m.mu.Unlock()

	return cur.Info(), nil
}

// PreloadNext opens path as the queued next stream, replacing any previous
// preload
func (m *Manager) PreloadNext(path string) (audio.StreamInfo, error) {
	next, err := NewCursor(path, 0)
	if err != nil {
		return audio.StreamInfo{}, err
	}

	m.mu.Lock()
	if m.next != nil {
		m.next.Close()
	}
	m.next = next
	m.mu.Unlock()

	return next.Info(), nil
}

// StartCrossfade begins blending from the active stream into the preloaded
// next stream over the given number of samples (the configured default when
// samples <= 0). Returns false when no next file is loaded or its format
// does not match sample for sample; mismatched-rate transitions go through
// ForceTransitionToNext instead, with the caller rebuilding the hardware
// session at the new rate.
func (m *Manager) StartCrossfade(samples int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.next == nil {
		return false
	}
	ci, ni := m.current.Info(), m.next.Info()
	if ci.SampleRate != ni.SampleRate || ci.Channels != ni.Channels {
		return false
	}

	if samples <= 0 {
		samples = m.cfg.CrossfadeSamples
	}
	if samples <= 0 {
		samples = int64(m.cfg.SamplesPerFrame)
	}

	m.xfadeActive = true
	m.xfadePos = 0
	m.xfadeTotal = samples
	return true
}

// ForceTransitionToNext immediately promotes the preloaded next stream to
// active, with a short fade-in to avoid a click at the splice
func (m *Manager) ForceTransitionToNext() (audio.StreamInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next == nil {
		return audio.StreamInfo{}, ErrNoNext
	}

	rateChanged := m.current == nil || m.current.Info().SampleRate != m.next.Info().SampleRate
	if m.current != nil {
		m.current.Close()
	}
	m.current = m.next
	m.next = nil
	m.xfadeActive = false
	m.fadeInSamples = min(quickFadeMaxSamples, m.cfg.SamplesPerFrame/4)
	if rateChanged {
		m.stats.RateTransitions++
	}
	return m.current.Info(), nil
}

// RequiresReconfiguration reports whether the preloaded next stream needs a
// different hardware stream format than the active one
func (m *Manager) RequiresReconfiguration() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.next == nil {
		return false
	}
	ci, ni := m.current.Info(), m.next.Info()
	return ci.SampleRate != ni.SampleRate || ci.Channels != ni.Channels
}

// NextFrame produces the next output frame. ok is false once the active
// stream is exhausted with nothing queued behind it.
func (m *Manager) NextFrame() (audio.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, false
	}

	if m.xfadeActive && m.next != nil {
		frame := m.crossfadeFrameLocked()
		m.stats.FramesProduced++
		return frame, true
	}

	srcCh := m.current.Info().Channels
	data, n := m.pullLocked(m.cfg.SamplesPerFrame)
	if n == 0 {
		return nil, false
	}

	frame := m.formatLocked(data, n, srcCh)
	if m.fadeInSamples > 0 {
		fn := m.fadeInSamples
		for c := range frame {
			for i := 0; i < fn && i < len(frame[c]); i++ {
				frame[c][i] *= float64(i) / float64(fn)
			}
		}
		m.fadeInSamples = 0
	}

	m.stats.FramesProduced++
	return frame, true
}

// pullLocked reads up to count frames of interleaved samples from the
// active stream, splicing in the next stream when the active one runs out
// mid-frame and the formats match
func (m *Manager) pullLocked(count int) ([]float64, int) {
	ch := m.current.Info().Channels
	out := make([]float64, 0, count*ch)
	got := 0

	for got < count {
		data, n, err := m.current.NextChunk(count - got)
		if n > 0 {
			out = append(out, data[:n*ch]...)
			got += n
		}
		if err == nil && n > 0 {
			continue
		}
		if err != nil && err != io.EOF {
			m.stats.DecodeFaults++
		}
		if !m.promoteSeamlessLocked() {
			break
		}
	}
	return out, got
}

// promoteSeamlessLocked swaps the exhausted active stream for the preloaded
// next stream when no hardware reconfiguration is needed
func (m *Manager) promoteSeamlessLocked() bool {
	if m.next == nil {
		return false
	}
	ci, ni := m.current.Info(), m.next.Info()
	if ci.SampleRate != ni.SampleRate || ci.Channels != ni.Channels {
		return false
	}
	m.current.Close()
	m.current = m.next
	m.next = nil
	m.stats.SeamlessTransitions++
	return true
}

// crossfadeFrameLocked blends one frame of the active and next streams.
// The blend weight advances globally across the fade, so a fade spanning
// many frames ramps monotonically from 0 to 1.
func (m *Manager) crossfadeFrameLocked() audio.Frame {
	spf := m.cfg.SamplesPerFrame
	srcCh := m.current.Info().Channels

	curData := m.readPaddedLocked(m.current, spf, srcCh)
	nextData := m.readPaddedLocked(m.next, spf, srcCh)

	for i := 0; i < spf; i++ {
		w := float64(m.xfadePos+int64(i)) / float64(m.xfadeTotal)
		if w > 1 {
			w = 1
		}
		for c := 0; c < srcCh; c++ {
			idx := i*srcCh + c
			curData[idx] = curData[idx]*(1-w) + nextData[idx]*w
		}
	}
	m.xfadePos += int64(spf)

	frame := m.formatLocked(curData, spf, srcCh)

	if m.xfadePos >= m.xfadeTotal {
		m.current.Close()
		m.current = m.next
		m.next = nil
		m.xfadeActive = false
		m.stats.Crossfades++
	}
	return frame
}

// readPaddedLocked reads exactly count frames from c, zero padding past end
// of stream
func (m *Manager) readPaddedLocked(c *Cursor, count, channels int) []float64 {
	out := make([]float64, count*channels)
	got := 0
	for got < count {
		data, n, err := c.NextChunk(count - got)
		if n > 0 {
			copy(out[got*channels:], data[:n*channels])
			got += n
		}
		if err != nil {
			if err != io.EOF {
				m.stats.DecodeFaults++
			}
			break
		}
		if n == 0 {
			break
		}
	}
	return out
}

// formatLocked maps n interleaved source frames onto the fixed output
// format: channel remap, zero-padded tail, optional stereo flip, then
// voltage scale
func (m *Manager) formatLocked(data []float64, n, srcCh int) audio.Frame {
	spf := m.cfg.SamplesPerFrame
	outCh := m.cfg.Channels
	frame := audio.NewFrame(outCh, spf)

	for i := 0; i < n; i++ {
		for c := 0; c < outCh; c++ {
			var v float64
			switch {
			case srcCh == 1:
				v = data[i]
			case c < srcCh:
				v = data[i*srcCh+c]
			default:
				v = data[i*srcCh+srcCh-1]
			}
			frame[c][i] = v
		}
	}

	if outCh >= 2 && srcCh == 2 && m.flip.Load() {
		frame[0], frame[1] = frame[1], frame[0]
	}

	if scale := m.VoltageScale(); scale != 1 {
		for c := range frame {
			for i := range frame[c] {
				frame[c][i] *= scale
			}
		}
	}
	return frame
}

// SetVoltageScale updates the output amplitude multiplier
func (m *Manager) SetVoltageScale(scale float64) {
	m.scaleBits.Store(math.Float64bits(scale))
}

// VoltageScale returns the current amplitude multiplier
func (m *Manager) VoltageScale() float64 {
	return math.Float64frombits(m.scaleBits.Load())
}

// SetFlipStereo updates the stereo channel swap flag
func (m *Manager) SetFlipStereo(flip bool) {
	m.flip.Store(flip)
}

// FlipStereo returns the stereo channel swap flag
func (m *Manager) FlipStereo() bool {
	return m.flip.Load()
}

// NextInfo returns the stream parameters of the preloaded next file
func (m *Manager) NextInfo() (audio.StreamInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.next == nil {
		return audio.StreamInfo{}, false
	}
	return m.next.Info(), true
}

// TransitionInfo snapshots the pending transition state
func (m *Manager) TransitionInfo() TransitionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := TransitionInfo{
		Pending:         m.next != nil,
		CrossfadeActive: m.xfadeActive,
	}
	if m.next != nil {
		info.NextFile = m.next.Info().Path
		ci, ni := m.current, m.next
		if ci != nil {
			info.RequiresReconfiguration = ci.Info().SampleRate != ni.Info().SampleRate ||
				ci.Info().Channels != ni.Info().Channels
		}
	}
	if m.xfadeActive {
		info.CrossfadePos = m.xfadePos
		info.CrossfadeTotal = m.xfadeTotal
	}
	return info
}

// Stats snapshots the production counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Unload closes both streams and clears all transition state
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	if m.next != nil {
		m.next.Close()
		m.next = nil
	}
	m.xfadeActive = false
	m.xfadePos = 0
	m.xfadeTotal = 0
	m.fadeInSamples = 0
}
