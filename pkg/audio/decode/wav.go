// ABOUTME: WAV audio decoder
// ABOUTME: Random access over the PCM data chunk via offset arithmetic
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// WAVDecoder decodes PCM WAV files. Random access is plain offset math on
// the data chunk, so every bit depth maps to a fixed block size.
type WAVDecoder struct {
	f          *os.File
	info       audio.StreamInfo
	bitDepth   int
	blockAlign int
	pcmStart   int64
	buf        []byte
}

// OpenWAV opens a 16 or 24-bit PCM WAV file
func OpenWAV(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav open: %w", err)
	}

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth != 16 && bitDepth != 24 {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupportedBitDepth, bitDepth)
	}

	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("wav pcm chunk: %w", err)
	}

	// File position now sits at the start of PCM data
	pcmStart, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wav seek: %w", err)
	}

	channels := int(d.NumChans)
	blockAlign := channels * bitDepth / 8

	return &WAVDecoder{
		f: f,
		info: audio.StreamInfo{
			Path:        path,
			SampleRate:  int(d.SampleRate),
			Channels:    channels,
			TotalFrames: d.PCMLen() / int64(blockAlign),
		},
		bitDepth:   bitDepth,
		blockAlign: blockAlign,
		pcmStart:   pcmStart,
	}, nil
}

// Info reports the stream metadata
func (d *WAVDecoder) Info() audio.StreamInfo {
	return d.info
}

// ReadChunk decodes up to count frames starting at frame offset start
func (d *WAVDecoder) ReadChunk(start int64, count int) ([]float64, int, error) {
	if start >= d.info.TotalFrames {
		return nil, 0, io.EOF
	}
	if rem := d.info.TotalFrames - start; int64(count) > rem {
		count = int(rem)
	}

	if _, err := d.f.Seek(d.pcmStart+start*int64(d.blockAlign), io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("wav seek: %w", err)
	}

	need := count * d.blockAlign
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	n, err := io.ReadFull(d.f, d.buf[:need])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, 0, fmt.Errorf("wav read: %w", err)
	}

	frames := n / d.blockAlign
	samples := make([]float64, frames*d.info.Channels)
	switch d.bitDepth {
	case 16:
		for i := range samples {
			v := int16(uint16(d.buf[2*i]) | uint16(d.buf[2*i+1])<<8)
			samples[i] = audio.SampleFromInt16(v)
		}
	case 24:
		for i := range samples {
			b := d.buf[3*i : 3*i+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign extend
			}
			samples[i] = audio.SampleFromInt24(v)
		}
	}

	return samples, frames, nil
}

// Close releases the underlying file
func (d *WAVDecoder) Close() error {
	return d.f.Close()
}
