// ABOUTME: Transport error types
// ABOUTME: Defines state violation and validation errors
package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNoAudio       = errors.New("transport: no audio loaded")
	ErrInvalidVolume = errors.New("transport: volume must be between 0 and 100")
	ErrNoChannels    = errors.New("transport: at least one output channel required")
	ErrChannelCount  = errors.New("transport: input channel count must match output channel count")
	ErrTooShort      = errors.New("transport: audio file too short to prime buffer")
)

// StateError reports an operation attempted in a state that does not
// allow it
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("transport: cannot %s while %s", e.Op, e.State)
}
