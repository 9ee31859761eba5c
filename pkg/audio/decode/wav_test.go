// ABOUTME: Tests for the WAV decoder
// ABOUTME: Tests metadata, offset reads and end-of-stream behavior
package decode

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/wavedaq/wavedaq-go/internal/audiotest"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

func TestOpenWAVInfo(t *testing.T) {
	path := audiotest.WriteWAV(t, t.TempDir(), "tone.wav", 44100, 2, 1000, audiotest.Ramp(0))

	dec, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	info := dec.Info()
	if info.SampleRate != 44100 {
		t.Errorf("expected 44100Hz, got %d", info.SampleRate)
	}
	if info.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", info.Channels)
	}
	if info.TotalFrames != 1000 {
		t.Errorf("expected 1000 frames, got %d", info.TotalFrames)
	}
}

func TestWAVReadChunkOffset(t *testing.T) {
	path := audiotest.WriteWAV(t, t.TempDir(), "ramp.wav", 8000, 1, 500, audiotest.Ramp(0))

	dec, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	samples, n, err := dec.ReadChunk(100, 50)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 50 {
		t.Fatalf("expected 50 frames, got %d", n)
	}

	for i := 0; i < n; i++ {
		want := audio.SampleFromInt16(int16(100 + i))
		if math.Abs(samples[i]-want) > 1e-9 {
			t.Fatalf("sample %d: expected %v, got %v", i, want, samples[i])
		}
	}
}

func TestWAVReadChunkTail(t *testing.T) {
	path := audiotest.WriteWAV(t, t.TempDir(), "tail.wav", 8000, 2, 300, audiotest.Constant(1))

	dec, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer dec.Close()

	// Read past the end: short read, no error
	_, n, err := dec.ReadChunk(250, 100)
	if err != nil {
		t.Fatalf("tail read failed: %v", err)
	}
	if n != 50 {
		t.Errorf("expected 50 tail frames, got %d", n)
	}

	// Read at the end: EOF
	if _, _, err := dec.ReadChunk(300, 100); err != io.EOF {
		t.Errorf("expected io.EOF past end, got %v", err)
	}
}

func TestOpenDispatch(t *testing.T) {
	if _, err := Open("track.xyz"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	if _, err := Open("missing.wav"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open("missing.mp3"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open("missing.flac"); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Open("missing.ogg"); err == nil {
		t.Error("expected error for missing file")
	}
}
