// ABOUTME: FLAC audio decoder
// ABOUTME: Random access through mewkiz/flac frame-level seeking
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// FLACDecoder decodes FLAC files. The library seeks to the frame containing
// a target sample; the decoder discards the leading samples to land exactly.
type FLACDecoder struct {
	f      *os.File
	stream *flac.Stream
	info   audio.StreamInfo
	scale  float64
}

// OpenFLAC opens a FLAC file with a seek table
func OpenFLAC(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flac open: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	si := stream.Info
	return &FLACDecoder{
		f:      f,
		stream: stream,
		info: audio.StreamInfo{
			Path:        path,
			SampleRate:  int(si.SampleRate),
			Channels:    int(si.NChannels),
			TotalFrames: int64(si.NSamples),
		},
		scale: float64(int64(1) << (si.BitsPerSample - 1)),
	}, nil
}

// Info reports the stream metadata
func (d *FLACDecoder) Info() audio.StreamInfo {
	return d.info
}

// ReadChunk decodes up to count frames starting at frame offset start
func (d *FLACDecoder) ReadChunk(start int64, count int) ([]float64, int, error) {
	if start >= d.info.TotalFrames {
		return nil, 0, io.EOF
	}
	if rem := d.info.TotalFrames - start; int64(count) > rem {
		count = int(rem)
	}

	// Seek lands on the first sample of the containing FLAC frame
	landed, err := d.stream.Seek(uint64(start))
	if err != nil {
		return nil, 0, fmt.Errorf("flac seek: %w", err)
	}
	skip := start - int64(landed)

	channels := d.info.Channels
	samples := make([]float64, 0, count*channels)
	need := (skip + int64(count)) * int64(channels)

	for int64(len(samples)) < need {
		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("flac parse: %w", err)
		}
		block := len(frame.Subframes[0].Samples)
		for i := 0; i < block; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float64(frame.Subframes[ch].Samples[i])/d.scale)
			}
		}
	}

	lo := skip * int64(channels)
	if lo > int64(len(samples)) {
		return nil, 0, io.EOF
	}
	hi := lo + int64(count*channels)
	if hi > int64(len(samples)) {
		hi = int64(len(samples))
	}
	out := samples[lo:hi]
	return out, len(out) / channels, nil
}

// Close releases the underlying file
func (d *FLACDecoder) Close() error {
	return d.f.Close()
}
