// ABOUTME: Playback transport driving hardware output with lockstep input
// ABOUTME: Owns the session lifecycle: load, prime, play, pause, seek, stop
package transport

import (
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wavedaq/wavedaq-go/internal/buffer"
	"github.com/wavedaq/wavedaq-go/internal/daq"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

const (
	defaultSamplesPerFrame = 8192
	defaultFramesPerBuffer = 10
	defaultWriteTimeout    = 10 * time.Second
	primeWriteTimeout      = time.Second
)

// State is the transport lifecycle state
type State string

const (
	StateIdle      State = "idle"
	StateLoaded    State = "loaded"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Config describes the hardware binding and streaming parameters
type Config struct {
	DeviceName       string
	AOChannels       []string
	AIChannels       []string
	DOChannels       []string
	SamplesPerFrame  int
	FramesPerBuffer  int
	Volume           float64 // percent, 0..100
	FlipStereo       bool
	CrossfadeSamples int64
	WriteTimeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.SamplesPerFrame <= 0 {
		c.SamplesPerFrame = defaultSamplesPerFrame
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = defaultFramesPerBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Volume <= 0 || c.Volume > 100 {
		c.Volume = 100
	}
}

// session is one armed set of hardware streams. Pause tears the session
// down; resume builds a fresh one, so stale buffered frames never replay.
type session struct {
	id      string
	out     daq.OutputSink
	in      daq.InputSource
	trig    daq.TriggerLine
	readBuf audio.Frame
}

// Transport streams a loaded file to the output channels while acquiring
// the input channels on the same sample clock. Completion is judged solely
// from the hardware's generated sample count, never from decode progress.
type Transport struct {
	cfg      Config
	registry *daq.Registry
	device   daq.Device
	buf      *buffer.Manager

	mu          sync.Mutex
	state       State
	file        audio.StreamInfo
	audioLoaded bool
	pausePos    int64 // frames already played in prior sessions
	baseline    uint64
	session     *session

	faults  atomic.Uint64
	lastErr atomic.Value // string
}

// New acquires the device and prepares an idle transport
func New(cfg Config, registry *daq.Registry, open daq.Opener) (*Transport, error) {
	cfg.applyDefaults()

	if len(cfg.AOChannels) == 0 {
		return nil, ErrNoChannels
	}
	if len(cfg.AIChannels) != len(cfg.AOChannels) {
		return nil, ErrChannelCount
	}

	device, err := registry.Acquire(cfg.DeviceName, open)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		cfg:      cfg,
		registry: registry,
		device:   device,
		state:    StateIdle,
		buf: buffer.New(buffer.Config{
			SamplesPerFrame:  cfg.SamplesPerFrame,
			Channels:         len(cfg.AOChannels),
			VoltageScale:     cfg.Volume / 100,
			CrossfadeSamples: cfg.CrossfadeSamples,
			FlipStereo:       cfg.FlipStereo,
		}),
	}
	return t, nil
}

// LoadAudio opens path, builds a session for its format and primes the
// hardware buffer so playback can start on the next trigger edge
func (t *Transport) LoadAudio(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardownSessionLocked()

	info, err := t.buf.LoadCurrent(path, 0)
	if err != nil {
		t.audioLoaded = false
		t.state = StateIdle
		return fmt.Errorf("load audio: %w", err)
	}
	t.file = info
	t.audioLoaded = true
	t.pausePos = 0

	if err := t.createSessionLocked(); err != nil {
		t.audioLoaded = false
		t.state = StateIdle
		return err
	}
	if err := t.primeLocked(); err != nil {
		t.teardownSessionLocked()
		t.audioLoaded = false
		t.state = StateIdle
		return err
	}

	t.state = StateLoaded
	log.Printf("Loaded %s: %d Hz, %d ch, %d frames", path, info.SampleRate, info.Channels, info.TotalFrames)
	return nil
}

// Play starts or resumes playback. From paused, the session is rebuilt at
// the saved position so the hardware buffer holds no stale frames.
func (t *Transport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateLoaded:
		// session primed by LoadAudio
	case StatePaused:
		if err := t.rebuildSessionLocked(); err != nil {
			return err
		}
	default:
		return &StateError{Op: "play", State: t.state}
	}

	return t.startSessionLocked()
}

// Resume continues playback from the paused position
func (t *Transport) Resume() error {
	return t.Play()
}

// Pause folds the hardware position into the saved play position and stops
// the streams
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePlaying {
		return &StateError{Op: "pause", State: t.state}
	}

	t.pausePos += t.sessionFramesLocked()
	t.stopStreamsLocked()
	t.state = StatePaused
	log.Printf("Paused at sample %d", t.pausePos)
	return nil
}

// Seek moves the play position to seconds, clamped to the file bounds.
// Playback restarts from the new position if it was running.
func (t *Transport) Seek(seconds float64) error {
	t.mu.Lock()
	if !t.audioLoaded {
		t.mu.Unlock()
		return ErrNoAudio
	}

	if seconds < 0 {
		seconds = 0
	}
	if d := t.file.Duration(); seconds > d {
		seconds = d
	}
	sample := int64(math.Round(seconds * float64(t.file.SampleRate)))
	if sample > t.file.TotalFrames {
		sample = t.file.TotalFrames
	}

	wasPlaying := t.state == StatePlaying
	if wasPlaying {
		t.stopStreamsLocked()
	}
	t.pausePos = sample
	t.state = StatePaused
	t.mu.Unlock()

	if wasPlaying {
		return t.Play()
	}
	return nil
}

// Stop halts playback and releases the session. Safe to call in any state.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardownSessionLocked()
	t.buf.Unload()
	t.pausePos = 0
	t.audioLoaded = false
	t.state = StateIdle
	return nil
}

// SetVolume sets the output amplitude as a percentage, applied to frames
// produced after the call
func (t *Transport) SetVolume(pct float64) error {
	if pct < 0 || pct > 100 {
		return ErrInvalidVolume
	}
	t.buf.SetVoltageScale(pct / 100)
	return nil
}

// Volume returns the output amplitude as a percentage
func (t *Transport) Volume() float64 {
	return t.buf.VoltageScale() * 100
}

// SetFlipStereo swaps the first two output channels for stereo sources
func (t *Transport) SetFlipStereo(flip bool) {
	t.buf.SetFlipStereo(flip)
}

// FlipStereo returns the stereo swap flag
func (t *Transport) FlipStereo() bool {
	return t.buf.FlipStereo()
}

// PreloadNext queues path for a gapless transition
func (t *Transport) PreloadNext(path string) error {
	t.mu.Lock()
	loaded := t.audioLoaded
	t.mu.Unlock()
	if !loaded {
		return ErrNoAudio
	}

	if _, err := t.buf.PreloadNext(path); err != nil {
		return fmt.Errorf("preload next: %w", err)
	}
	return nil
}

// Transition switches playback to the preloaded next file. Matching formats
// transition in-stream, with a crossfade when requested; a format change
// rebuilds the hardware session at the new rate.
func (t *Transport) Transition(useCrossfade bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StatePlaying {
		return &StateError{Op: "transition", State: t.state}
	}
	next, ok := t.buf.NextInfo()
	if !ok {
		return buffer.ErrNoNext
	}

	if t.buf.RequiresReconfiguration() {
		return t.reconfigureTransitionLocked()
	}

	if useCrossfade {
		if !t.buf.StartCrossfade(t.cfg.CrossfadeSamples) {
			return buffer.ErrNoNext
		}
	} else {
		if _, err := t.buf.ForceTransitionToNext(); err != nil {
			return err
		}
	}

	// Position accounting restarts at the head of the new file
	t.file = next
	t.pausePos = 0
	if t.session != nil {
		t.baseline = t.session.out.SamplesGenerated()
	}
	return nil
}

// reconfigureTransitionLocked restarts the hardware session for a next file
// whose sample rate or channel count differs from the active one
func (t *Transport) reconfigureTransitionLocked() error {
	info, err := t.buf.ForceTransitionToNext()
	if err != nil {
		return err
	}
	log.Printf("Transition requires reconfiguration: %d Hz -> %d Hz", t.file.SampleRate, info.SampleRate)

	t.teardownSessionLocked()
	t.file = info
	t.pausePos = 0

	if err := t.createSessionLocked(); err != nil {
		return err
	}
	if err := t.primeLocked(); err != nil {
		t.teardownSessionLocked()
		return err
	}
	return t.startSessionLocked()
}

// Close stops playback and releases the device
func (t *Transport) Close() error {
	t.Stop()
	t.registry.Release(t.device)
	return nil
}

// SamplesGenerated reports the per-channel samples clocked out in the
// current session
func (t *Transport) SamplesGenerated() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return 0
	}
	return t.session.out.SamplesGenerated() - t.baseline
}

// BufferStats returns the frame production counters
func (t *Transport) BufferStats() buffer.Stats {
	return t.buf.Stats()
}

// rebuildSessionLocked recreates the session with the active file reopened
// at the paused position
func (t *Transport) rebuildSessionLocked() error {
	t.teardownSessionLocked()

	if _, err := t.buf.LoadCurrent(t.file.Path, t.pausePos); err != nil {
		return fmt.Errorf("reopen %s: %w", t.file.Path, err)
	}
	if err := t.createSessionLocked(); err != nil {
		return err
	}
	if err := t.primeLocked(); err != nil {
		t.teardownSessionLocked()
		return err
	}
	return nil
}

// createSessionLocked opens and configures output, input and trigger
// streams for the active file format
func (t *Transport) createSessionLocked() error {
	cfg := daq.StreamConfig{
		SampleRate:    t.file.SampleRate,
		Channels:      len(t.cfg.AOChannels),
		BufferSamples: t.cfg.SamplesPerFrame * t.cfg.FramesPerBuffer,
	}

	out, err := t.device.OutputSink(t.cfg.AOChannels)
	if err != nil {
		return fmt.Errorf("output sink: %w", err)
	}
	if err := out.Configure(cfg); err != nil {
		out.Close()
		return fmt.Errorf("configure output: %w", err)
	}

	in, err := t.device.InputSource(t.cfg.AIChannels)
	if err != nil {
		out.Close()
		return fmt.Errorf("input source: %w", err)
	}
	inCfg := cfg
	inCfg.Channels = len(t.cfg.AIChannels)
	if err := in.Configure(inCfg); err != nil {
		out.Close()
		in.Close()
		return fmt.Errorf("configure input: %w", err)
	}

	var trig daq.TriggerLine
	if len(t.cfg.DOChannels) > 0 {
		trig, err = t.device.TriggerLine(t.cfg.DOChannels)
		if err != nil {
			out.Close()
			in.Close()
			return fmt.Errorf("trigger line: %w", err)
		}
	}

	sess := &session{
		id:      uuid.NewString(),
		out:     out,
		in:      in,
		trig:    trig,
		readBuf: audio.NewFrame(len(t.cfg.AIChannels), t.cfg.SamplesPerFrame),
	}
	out.RegisterFrameCallback(t.cfg.SamplesPerFrame, t.writeCallback)
	out.RegisterDoneCallback(t.doneCallback)
	in.RegisterFrameCallback(t.cfg.SamplesPerFrame, t.readCallback)

	t.session = sess
	return nil
}

// primeLocked fills the hardware buffer before the clock starts. The
// remaining audio must cover the whole buffer; a zero-padded tail frame
// is fine, running out of frames entirely is not.
func (t *Transport) primeLocked() error {
	for i := 0; i < t.cfg.FramesPerBuffer; i++ {
		frame, ok := t.buf.NextFrame()
		if !ok {
			return ErrTooShort
		}
		if err := t.session.out.Write(frame, primeWriteTimeout); err != nil {
			return fmt.Errorf("prime hardware buffer: %w", err)
		}
	}
	return nil
}

// startSessionLocked arms input, raises the trigger and starts the output
// clock, baselining the generated counter for this session
func (t *Transport) startSessionLocked() error {
	sess := t.session
	if err := sess.in.Start(); err != nil {
		return fmt.Errorf("start input: %w", err)
	}
	if err := sess.out.Start(); err != nil {
		sess.in.Stop()
		return fmt.Errorf("start output: %w", err)
	}
	t.baseline = sess.out.SamplesGenerated()

	if sess.trig != nil {
		if err := sess.trig.Write(triggerLevels(len(t.cfg.DOChannels), true)); err != nil {
			sess.out.Stop()
			sess.in.Stop()
			return fmt.Errorf("raise trigger: %w", err)
		}
	}

	t.state = StatePlaying
	return nil
}

// stopStreamsLocked lowers the trigger and halts both clocks, keeping the
// session handles for teardown
func (t *Transport) stopStreamsLocked() {
	sess := t.session
	if sess == nil {
		return
	}
	if sess.trig != nil {
		sess.trig.Write(triggerLevels(len(t.cfg.DOChannels), false))
	}
	sess.out.Stop()
	sess.in.Stop()
}

func (t *Transport) teardownSessionLocked() {
	sess := t.session
	if sess == nil {
		return
	}
	t.stopStreamsLocked()
	sess.out.Close()
	sess.in.Close()
	if sess.trig != nil {
		sess.trig.Close()
	}
	t.session = nil
	t.baseline = 0
}

// sessionFramesLocked converts the hardware counter into frames played this
// session, clamped to the file length
func (t *Transport) sessionFramesLocked() int64 {
	if t.session == nil {
		return 0
	}
	gen := int64(t.session.out.SamplesGenerated() - t.baseline)
	if t.pausePos+gen > t.file.TotalFrames {
		gen = t.file.TotalFrames - t.pausePos
	}
	if gen < 0 {
		gen = 0
	}
	return gen
}

func (t *Transport) completedLocked() bool {
	if t.session == nil || t.file.TotalFrames == 0 {
		return false
	}
	gen := int64(t.session.out.SamplesGenerated() - t.baseline)
	return t.pausePos+gen >= t.file.TotalFrames
}

// writeCallback runs on the hardware clock: one output frame per period.
// It must never panic through to the driver and never block past the write
// timeout.
func (t *Transport) writeCallback() {
	defer func() {
		if r := recover(); r != nil {
			t.recordFault(fmt.Errorf("write callback panic: %v", r))
		}
	}()

	t.mu.Lock()
	if t.state != StatePlaying || t.session == nil {
		t.mu.Unlock()
		return
	}
	sess := t.session
	if t.completedLocked() {
		t.state = StateCompleted
		lines := len(t.cfg.DOChannels)
		t.mu.Unlock()
		log.Printf("Playback completed: %s", t.file.Path)
		if sess.trig != nil {
			sess.trig.Write(triggerLevels(lines, false))
		}
		go func() {
			sess.out.Stop()
			sess.in.Stop()
		}()
		return
	}
	channels := len(t.cfg.AOChannels)
	spf := t.cfg.SamplesPerFrame
	timeout := t.cfg.WriteTimeout
	t.mu.Unlock()

	frame, ok := t.buf.NextFrame()
	if !ok {
		// Keep the clock fed until the hardware counter confirms the end
		frame = audio.NewFrame(channels, spf)
	}

	switch err := sess.out.Write(frame, timeout); err {
	case nil, daq.ErrStopped, daq.ErrClosed:
	case daq.ErrWriteTimeout:
		t.recordFault(err)
		go t.Stop()
	default:
		t.recordFault(err)
	}
}

// readCallback drains the lockstep input stream
func (t *Transport) readCallback() {
	t.mu.Lock()
	sess := t.session
	spf := t.cfg.SamplesPerFrame
	t.mu.Unlock()
	if sess == nil {
		return
	}

	if _, err := sess.in.Read(sess.readBuf, spf, daq.WaitInfinitely); err != nil {
		if err != daq.ErrClosed && err != daq.ErrStopped {
			t.recordFault(fmt.Errorf("input read: %w", err))
		}
	}
}

// doneCallback fires when the hardware ends the stream on its own
func (t *Transport) doneCallback(err error) {
	if err != nil {
		t.recordFault(fmt.Errorf("stream done: %w", err))
	}

	t.mu.Lock()
	sess := t.session
	lines := len(t.cfg.DOChannels)
	if t.state == StatePlaying {
		t.state = StateCompleted
	}
	t.mu.Unlock()

	if sess != nil && sess.trig != nil {
		sess.trig.Write(triggerLevels(lines, false))
	}
}

func (t *Transport) recordFault(err error) {
	t.faults.Add(1)
	t.lastErr.Store(err.Error())
	log.Printf("Streaming fault: %v", err)
}

func triggerLevels(n int, high bool) []bool {
	levels := make([]bool, n)
	for i := range levels {
		levels[i] = high
	}
	return levels
}
