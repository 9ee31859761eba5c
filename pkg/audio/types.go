// ABOUTME: Shared audio type definitions
// ABOUTME: Defines stream metadata and fixed-length multichannel frames
package audio

// StreamInfo describes a decoded audio stream
type StreamInfo struct {
	Path        string
	SampleRate  int
	Channels    int
	TotalFrames int64
}

// Duration returns the stream length in seconds
func (s StreamInfo) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.TotalFrames) / float64(s.SampleRate)
}

// Frame is a fixed-length block of multichannel samples, one slice per
// channel. Samples are float64 voltages after scaling.
type Frame [][]float64

// NewFrame allocates a zeroed (silent) frame
func NewFrame(channels, samples int) Frame {
	f := make(Frame, channels)
	for ch := range f {
		f[ch] = make([]float64, samples)
	}
	return f
}

// Channels returns the channel count
func (f Frame) Channels() int {
	return len(f)
}

// Samples returns the per-channel sample count
func (f Frame) Samples() int {
	if len(f) == 0 {
		return 0
	}
	return len(f[0])
}

// SampleFromInt16 converts an int16 PCM sample to normalized float64
func SampleFromInt16(v int16) float64 {
	return float64(v) / 32768.0
}

// SampleFromInt24 converts a 24-bit PCM sample to normalized float64
func SampleFromInt24(v int32) float64 {
	return float64(v) / 8388608.0
}
