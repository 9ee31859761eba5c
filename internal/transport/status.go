// ABOUTME: Transport status snapshot
// ABOUTME: Builds the wire-facing playback status report
package transport

import (
	"github.com/wavedaq/wavedaq-go/internal/buffer"
)

// Status is a point-in-time snapshot of the transport for status reports
type Status struct {
	Device             string                `json:"device"`
	Channels           int                   `json:"channels"`
	SampleRate         int                   `json:"sample_rate"`
	State              State                 `json:"state"`
	AudioLoaded        bool                  `json:"audio_loaded"`
	Playing            bool                  `json:"playing"`
	Paused             bool                  `json:"paused"`
	CurrentFile        string                `json:"current_file,omitempty"`
	DurationSeconds    float64               `json:"duration"`
	PausePosition      int64                 `json:"pause_position_samples"`
	TotalSamples       int64                 `json:"total_samples"`
	CurrentTimeSeconds float64               `json:"current_time_seconds"`
	SamplesGenerated   uint64                `json:"samples_generated"`
	AudioCompleted     bool                  `json:"audio_completed"`
	StreamingFaults    uint64                `json:"streaming_faults"`
	LastError          string                `json:"last_error,omitempty"`
	VoltageScale       float64               `json:"voltage_scale"`
	FlipLRStereo       bool                  `json:"flip_lr_stereo"`
	Transition         buffer.TransitionInfo `json:"transition"`
}

// Status reports the current transport state. A playing transport whose
// hardware counter has passed the end of the file is folded to completed
// here, so polling clients observe completion without a callback race.
func (t *Transport) Status() Status {
	t.mu.Lock()

	if t.state == StatePlaying && t.completedLocked() {
		t.state = StateCompleted
	}

	var generated uint64
	if t.session != nil {
		generated = t.session.out.SamplesGenerated() - t.baseline
	}

	pos := t.pausePos
	if t.state == StatePlaying || t.state == StateCompleted {
		pos += t.sessionFramesLocked()
	}

	s := Status{
		Device:           t.cfg.DeviceName,
		Channels:         len(t.cfg.AOChannels),
		State:            t.state,
		AudioLoaded:      t.audioLoaded,
		Playing:          t.state == StatePlaying,
		Paused:           t.state == StatePaused,
		PausePosition:    t.pausePos,
		SamplesGenerated: generated,
		AudioCompleted:   t.state == StateCompleted,
	}
	if t.audioLoaded {
		s.CurrentFile = t.file.Path
		s.SampleRate = t.file.SampleRate
		s.TotalSamples = t.file.TotalFrames
		s.DurationSeconds = t.file.Duration()
		if t.file.SampleRate > 0 {
			s.CurrentTimeSeconds = float64(pos) / float64(t.file.SampleRate)
		}
	}
	t.mu.Unlock()

	s.StreamingFaults = t.faults.Load()
	if v := t.lastErr.Load(); v != nil {
		s.LastError = v.(string)
	}
	s.VoltageScale = t.buf.VoltageScale()
	s.FlipLRStereo = t.buf.FlipStereo()
	s.Transition = t.buf.TransitionInfo()
	return s
}
