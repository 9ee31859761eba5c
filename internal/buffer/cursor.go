// ABOUTME: Read cursor over a decoded audio stream
// ABOUTME: Tracks a frame position and pulls sequential interleaved chunks
package buffer

import (
	"fmt"
	"io"

	"github.com/wavedaq/wavedaq-go/pkg/audio"
	"github.com/wavedaq/wavedaq-go/pkg/audio/decode"
)

// Cursor walks a decoded stream from a start offset. Each NextChunk call
// advances the position by the frames actually read.
type Cursor struct {
	dec  decode.Decoder
	info audio.StreamInfo
	pos  int64
}

// NewCursor opens path and positions the cursor at startSample, clamped to
// the stream bounds
func NewCursor(path string, startSample int64) (*Cursor, error) {
	dec, err := decode.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info := dec.Info()
	if startSample < 0 {
		startSample = 0
	}
	if startSample > info.TotalFrames {
		startSample = info.TotalFrames
	}

	return &Cursor{dec: dec, info: info, pos: startSample}, nil
}

// Info returns the stream parameters
func (c *Cursor) Info() audio.StreamInfo { return c.info }

// Pos returns the current frame position
func (c *Cursor) Pos() int64 { return c.pos }

// HasMore reports whether frames remain before end of stream
func (c *Cursor) HasMore() bool { return c.pos < c.info.TotalFrames }

// NextChunk reads up to count frames of interleaved samples from the
// current position. Returns io.EOF once the stream is exhausted.
func (c *Cursor) NextChunk(count int) ([]float64, int, error) {
	if c.pos >= c.info.TotalFrames {
		return nil, 0, io.EOF
	}
	data, n, err := c.dec.ReadChunk(c.pos, count)
	c.pos += int64(n)
	if n > 0 && err == io.EOF {
		// Short tail read; EOF surfaces on the next call
		err = nil
	}
	return data, n, err
}

// Close releases the underlying decoder
func (c *Cursor) Close() error {
	if c.dec == nil {
		return nil
	}
	err := c.dec.Close()
	c.dec = nil
	return err
}
