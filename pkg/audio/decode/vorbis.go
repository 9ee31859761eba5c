// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Random access through oggvorbis position seeking
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// VorbisDecoder decodes Ogg Vorbis files
type VorbisDecoder struct {
	f    *os.File
	r    *oggvorbis.Reader
	info audio.StreamInfo
	buf  []float32
}

// OpenVorbis opens an Ogg Vorbis file
func OpenVorbis(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vorbis open: %w", err)
	}

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	total := r.Length()
	if total <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: vorbis length unknown", ErrNotSeekable)
	}

	return &VorbisDecoder{
		f: f,
		r: r,
		info: audio.StreamInfo{
			Path:        path,
			SampleRate:  r.SampleRate(),
			Channels:    r.Channels(),
			TotalFrames: total,
		},
	}, nil
}

// Info reports the stream metadata
func (d *VorbisDecoder) Info() audio.StreamInfo {
	return d.info
}

// ReadChunk decodes up to count frames starting at frame offset start
func (d *VorbisDecoder) ReadChunk(start int64, count int) ([]float64, int, error) {
	if start >= d.info.TotalFrames {
		return nil, 0, io.EOF
	}
	if rem := d.info.TotalFrames - start; int64(count) > rem {
		count = int(rem)
	}

	if err := d.r.SetPosition(start); err != nil {
		return nil, 0, fmt.Errorf("vorbis seek: %w", err)
	}

	channels := d.info.Channels
	need := count * channels
	if cap(d.buf) < need {
		d.buf = make([]float32, need)
	}

	filled := 0
	for filled < need {
		n, err := d.r.Read(d.buf[filled:need])
		filled += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("vorbis read: %w", err)
		}
	}

	frames := filled / channels
	samples := make([]float64, frames*channels)
	for i := range samples {
		samples[i] = float64(d.buf[i])
	}

	return samples, frames, nil
}

// Close releases the underlying file
func (d *VorbisDecoder) Close() error {
	return d.f.Close()
}
