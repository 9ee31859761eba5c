// ABOUTME: WAV fixture generation for tests
// ABOUTME: Writes deterministic 16-bit PCM files via go-audio
package audiotest

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes a 16-bit PCM WAV file into dir whose sample values come
// from gen(frame, channel), and returns its path. gen values are raw int16
// amplitudes.
func WriteWAV(t *testing.T, dir, name string, sampleRate, channels, frames int, gen func(frame, ch int) int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = gen(i, ch)
		}
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}

	return path
}

// Constant returns a generator producing the same amplitude on every channel
func Constant(v int) func(frame, ch int) int {
	return func(int, int) int { return v }
}

// Ramp returns a generator producing the frame index as amplitude,
// offset per channel, so positions are recoverable from sample values
func Ramp(chOffset int) func(frame, ch int) int {
	return func(frame, ch int) int {
		v := frame + ch*chOffset
		if v > 32767 {
			v = 32767
		}
		return v
	}
}
