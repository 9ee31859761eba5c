// ABOUTME: Tests for the playback transport
// ABOUTME: Tests priming, completion, pause/resume, seek and transitions
package transport

import (
	"errors"
	"math"
	"testing"

	"github.com/wavedaq/wavedaq-go/internal/audiotest"
	"github.com/wavedaq/wavedaq-go/internal/buffer"
	"github.com/wavedaq/wavedaq-go/internal/daq"
)

func testConfig() Config {
	return Config{
		DeviceName:       "SimDev1",
		AOChannels:       []string{"SimDev1/ao0"},
		AIChannels:       []string{"SimDev1/ai0"},
		DOChannels:       []string{"SimDev1/port0/line0"},
		SamplesPerFrame:  100,
		FramesPerBuffer:  4,
		CrossfadeSamples: 200,
	}
}

func newTestTransport(t *testing.T, cfg Config) (*Transport, *daq.SimDevice) {
	t.Helper()

	dev := daq.NewSimDevice(cfg.DeviceName)
	tr, err := New(cfg, daq.NewRegistry(), func(name string) (daq.Device, error) {
		return dev, nil
	})
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, dev
}

func TestNewValidatesChannels(t *testing.T) {
	reg := daq.NewRegistry()
	open := func(name string) (daq.Device, error) { return daq.NewSimDevice(name), nil }

	cfg := testConfig()
	cfg.AOChannels = nil
	if _, err := New(cfg, reg, open); err != ErrNoChannels {
		t.Errorf("expected ErrNoChannels, got %v", err)
	}

	cfg = testConfig()
	cfg.AIChannels = []string{"ai0", "ai1"}
	if _, err := New(cfg, reg, open); err != ErrChannelCount {
		t.Errorf("expected ErrChannelCount, got %v", err)
	}
}

func TestLoadAudioPrimesHardwareBuffer(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 950, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := dev.Sink().Queued(); got != 4 {
		t.Errorf("expected 4 primed frames, got %d", got)
	}
	s := tr.Status()
	if s.State != StateLoaded || !s.AudioLoaded {
		t.Errorf("expected loaded state, got %+v", s.State)
	}
	if s.TotalSamples != 950 || s.SampleRate != 1000 {
		t.Errorf("unexpected file info: %+v", s)
	}
}

func TestCompletionJudgedByHardwareCounter(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 950, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	trig := dev.Trigger()
	if levels := trig.Levels(); len(levels) != 1 || !levels[0] {
		t.Fatalf("trigger must be high after play, got %v", levels)
	}

	// 9 periods of 100 samples: decoder long exhausted but only 900 of 950
	// samples clocked out, so playback is not complete
	dev.Step(9)
	s := tr.Status()
	if s.AudioCompleted {
		t.Fatal("must not complete before the counter passes the file length")
	}
	if s.State != StatePlaying {
		t.Fatalf("expected playing, got %v", s.State)
	}

	dev.Step(1)
	s = tr.Status()
	if !s.AudioCompleted || s.State != StateCompleted {
		t.Fatalf("expected completion at 1000 >= 950 samples, got %+v", s.State)
	}
	if levels := trig.Levels(); levels[0] {
		t.Error("trigger must drop on completion")
	}
	if s.StreamingFaults != 0 {
		t.Errorf("expected no faults, got %d", s.StreamingFaults)
	}

	// Completed transport rejects play until a seek or reload
	var stateErr *StateError
	if err := tr.Play(); !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if err := tr.Seek(0); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play after seek: %v", err)
	}
}

func TestPauseFoldsHardwarePosition(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 1000, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	dev.Step(3)
	if err := tr.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}

	s := tr.Status()
	if s.PausePosition != 300 {
		t.Fatalf("expected pause position 300, got %d", s.PausePosition)
	}
	if s.State != StatePaused {
		t.Fatalf("expected paused, got %v", s.State)
	}

	// Resume rebuilds the session: the first frame clocked out must pick up
	// exactly where the pause position left off
	if err := tr.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	dev.Step(1)

	consumed := dev.Sink().Consumed()
	if len(consumed) == 0 {
		t.Fatal("no frames consumed after resume")
	}
	if want := 300.0 / 32768; math.Abs(consumed[0][0][0]-want) > 1e-9 {
		t.Errorf("resume must continue at sample 300, got %v want %v", consumed[0][0][0], want)
	}
}

func TestSeekRepositionsPlayback(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 1000, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Seek(0.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if s := tr.Status(); s.State != StatePaused || s.PausePosition != 500 {
		t.Fatalf("expected paused at 500, got %v at %d", s.State, s.PausePosition)
	}

	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	dev.Step(1)

	consumed := dev.Sink().Consumed()
	if len(consumed) == 0 {
		t.Fatal("no frames consumed")
	}
	if want := 500.0 / 32768; math.Abs(consumed[0][0][0]-want) > 1e-9 {
		t.Errorf("playback must start at sample 500, got %v", consumed[0][0][0])
	}

	// Seek past the end clamps to the file duration
	if err := tr.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := tr.Seek(99); err != nil {
		t.Fatalf("seek past end: %v", err)
	}
	if s := tr.Status(); s.PausePosition != 1000 {
		t.Errorf("expected clamp to 1000, got %d", s.PausePosition)
	}
}

func TestSeekWithoutAudio(t *testing.T) {
	tr, _ := newTestTransport(t, testConfig())
	if err := tr.Seek(1); err != ErrNoAudio {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tr, _ := newTestTransport(t, testConfig())
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 500, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	if err := tr.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := tr.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	s := tr.Status()
	if s.State != StateIdle || s.AudioLoaded || s.PausePosition != 0 {
		t.Fatalf("expected idle unloaded transport, got %+v", s)
	}

	var stateErr *StateError
	if err := tr.Play(); !errors.As(err, &stateErr) {
		t.Errorf("play after stop must fail, got %v", err)
	}
}

func TestLoadAudioRejectsFileShorterThanBuffer(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	// 150 frames cannot fill a 4 x 100 sample hardware buffer
	path := audiotest.WriteWAV(t, dir, "short.wav", 1000, 1, 150, audiotest.Ramp(0))

	if err := tr.LoadAudio(path); !errors.Is(err, ErrTooShort) {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}

	s := tr.Status()
	if s.State != StateIdle || s.AudioLoaded {
		t.Fatalf("failed load must revert to idle, got %v loaded=%v", s.State, s.AudioLoaded)
	}

	var stateErr *StateError
	if err := tr.Play(); !errors.As(err, &stateErr) {
		t.Errorf("play after failed load must be rejected, got %v", err)
	}

	// A zero-padded tail frame is not exhaustion: one sample short of four
	// full frames still primes
	tail := audiotest.WriteWAV(t, dir, "tail.wav", 1000, 1, 399, audiotest.Ramp(0))
	if err := tr.LoadAudio(tail); err != nil {
		t.Fatalf("load with padded tail: %v", err)
	}
	s = tr.Status()
	if s.State != StateLoaded {
		t.Errorf("expected loaded state, got %v", s.State)
	}
	if got := dev.Sink().Queued(); got != 4 {
		t.Errorf("expected 4 primed frames in fresh session, got %d", got)
	}
}

func TestSilenceSubstitutedAfterDecoderExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.FramesPerBuffer = 2
	tr, dev := newTestTransport(t, cfg)
	dir := t.TempDir()
	// Priming consumes the whole 200-frame file before the clock starts
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 200, audiotest.Constant(16384))

	if err := tr.LoadAudio(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	dev.Step(1)
	s := tr.Status()
	if s.AudioCompleted {
		t.Fatal("100 of 200 samples played, must not be complete")
	}
	if s.StreamingFaults != 0 {
		t.Fatalf("silence substitution must not count as a fault, got %d", s.StreamingFaults)
	}
	// The frame written during the step is silence, not decoded audio
	if got := dev.Sink().Queued(); got != 2 {
		t.Fatalf("expected refilled buffer, got %d queued", got)
	}

	dev.Step(1)
	if s := tr.Status(); !s.AudioCompleted {
		t.Fatal("expected completion at 200 samples")
	}
}

func TestVolumeMapsPercentToScale(t *testing.T) {
	tr, _ := newTestTransport(t, testConfig())

	if err := tr.SetVolume(50); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if got := tr.Status().VoltageScale; got != 0.5 {
		t.Errorf("expected scale 0.5, got %v", got)
	}
	if err := tr.SetVolume(150); err != ErrInvalidVolume {
		t.Errorf("expected ErrInvalidVolume, got %v", err)
	}
	if err := tr.SetVolume(-1); err != ErrInvalidVolume {
		t.Errorf("expected ErrInvalidVolume, got %v", err)
	}
}

func TestTransitionCrossfadeSwitchesFileInfo(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	a := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 2000, audiotest.Constant(16384))
	b := audiotest.WriteWAV(t, dir, "b.wav", 1000, 1, 1500, audiotest.Constant(8192))

	if err := tr.LoadAudio(a); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	dev.Step(2)

	if err := tr.PreloadNext(b); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if err := tr.Transition(true); err != nil {
		t.Fatalf("transition: %v", err)
	}

	s := tr.Status()
	if s.CurrentFile != b || s.TotalSamples != 1500 {
		t.Errorf("status must follow the new file, got %s / %d", s.CurrentFile, s.TotalSamples)
	}
	if !s.Transition.CrossfadeActive {
		t.Error("expected active crossfade")
	}
	if s.State != StatePlaying {
		t.Errorf("transition must not interrupt playback, got %v", s.State)
	}
}

func TestTransitionWithoutPreload(t *testing.T) {
	tr, _ := newTestTransport(t, testConfig())
	dir := t.TempDir()
	a := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 2000, audiotest.Constant(16384))

	if err := tr.LoadAudio(a); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := tr.Transition(true); err != buffer.ErrNoNext {
		t.Errorf("expected ErrNoNext, got %v", err)
	}
}

func TestTransitionReconfiguresForNewRate(t *testing.T) {
	tr, dev := newTestTransport(t, testConfig())
	dir := t.TempDir()
	a := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 2000, audiotest.Constant(16384))
	b := audiotest.WriteWAV(t, dir, "b.wav", 2000, 1, 1500, audiotest.Constant(8192))

	if err := tr.LoadAudio(a); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := tr.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	dev.Step(2)

	if err := tr.PreloadNext(b); err != nil {
		t.Fatalf("preload: %v", err)
	}
	if err := tr.Transition(false); err != nil {
		t.Fatalf("transition: %v", err)
	}

	s := tr.Status()
	if s.SampleRate != 2000 || s.CurrentFile != b {
		t.Errorf("expected reconfigured session at 2000 Hz, got %+v", s.SampleRate)
	}
	if s.State != StatePlaying {
		t.Errorf("expected playback running after reconfiguration, got %v", s.State)
	}
	// A fresh session was primed for the new rate
	if got := dev.Sink().Queued(); got != 4 {
		t.Errorf("expected 4 primed frames in new session, got %d", got)
	}
	if tr.BufferStats().RateTransitions != 1 {
		t.Errorf("expected 1 rate transition, got %d", tr.BufferStats().RateTransitions)
	}
}
