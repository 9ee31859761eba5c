// ABOUTME: MP3 audio decoder
// ABOUTME: Random access via byte-exact seeks on the decoded PCM stream
package decode

import (
	"fmt"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// go-mp3 always emits 16-bit little-endian stereo
const mp3BytesPerFrame = 4

// MP3Decoder decodes MP3 files through go-mp3, which exposes the decoded
// stream as a seekable byte reader.
type MP3Decoder struct {
	f    *os.File
	dec  *mp3.Decoder
	info audio.StreamInfo
	buf  []byte
}

// OpenMP3 opens an MP3 file
func OpenMP3(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mp3 open: %w", err)
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	total := dec.Length() / mp3BytesPerFrame
	if total <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: mp3 length unknown", ErrNotSeekable)
	}

	return &MP3Decoder{
		f:   f,
		dec: dec,
		info: audio.StreamInfo{
			Path:        path,
			SampleRate:  dec.SampleRate(),
			Channels:    2,
			TotalFrames: total,
		},
	}, nil
}

// Info reports the stream metadata
func (d *MP3Decoder) Info() audio.StreamInfo {
	return d.info
}

// ReadChunk decodes up to count frames starting at frame offset start
func (d *MP3Decoder) ReadChunk(start int64, count int) ([]float64, int, error) {
	if start >= d.info.TotalFrames {
		return nil, 0, io.EOF
	}
	if rem := d.info.TotalFrames - start; int64(count) > rem {
		count = int(rem)
	}

	if _, err := d.dec.Seek(start*mp3BytesPerFrame, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("mp3 seek: %w", err)
	}

	need := count * mp3BytesPerFrame
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	n, err := io.ReadFull(d.dec, d.buf[:need])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, 0, fmt.Errorf("mp3 read: %w", err)
	}

	frames := n / mp3BytesPerFrame
	samples := make([]float64, frames*2)
	for i := range samples {
		v := int16(uint16(d.buf[2*i]) | uint16(d.buf[2*i+1])<<8)
		samples[i] = audio.SampleFromInt16(v)
	}

	return samples, frames, nil
}

// Close releases the underlying file
func (d *MP3Decoder) Close() error {
	return d.f.Close()
}
