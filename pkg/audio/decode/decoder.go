// ABOUTME: Random-access audio decoder interface
// ABOUTME: Dispatches to per-format decoders by file extension
package decode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wavedaq/wavedaq-go/pkg/audio"
)

// Decoder decodes an audio file to normalized PCM with random access.
// Samples are interleaved float64 in [-1, 1].
type Decoder interface {
	// Info reports the stream metadata
	Info() audio.StreamInfo

	// ReadChunk decodes up to count frames starting at frame offset start.
	// It returns interleaved samples and the number of frames decoded; a
	// short read at end of stream is not an error. Reading at or past the
	// end returns io.EOF.
	ReadChunk(start int64, count int) ([]float64, int, error)

	// Close releases decoder resources
	Close() error
}

// Open opens path with the decoder matching its extension
func Open(path string) (Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return OpenWAV(path)
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".ogg", ".oga":
		return OpenVorbis(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}
