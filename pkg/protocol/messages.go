// ABOUTME: Control protocol message types
// ABOUTME: Task requests and their timestamped responses
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task names accepted by the control endpoint
const (
	TaskHealthcheck  = "healthcheck"
	TaskPID          = "pid"
	TaskTerminate    = "terminate"
	TaskLoadAudio    = "load_audio"
	TaskPlay         = "play"
	TaskPause        = "pause"
	TaskResume       = "resume"
	TaskStop         = "stop"
	TaskSeek         = "seek"
	TaskStatus       = "status"
	TaskVolume       = "volume"
	TaskFlipLRStereo = "flip_lr_stereo"
	TaskPreloadNext  = "preload_next"
	TaskTransition   = "transition"
)

// Response status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one task message from a client. Data carries the task-specific
// payload and may be absent.
type Request struct {
	ID   string          `json:"id"`
	Task string          `json:"task"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response answers one request. ID echoes the request so clients can match
// responses to in-flight tasks; Timestamp is milliseconds since the epoch.
type Response struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	LastMsg   string      `json:"lastmsg"`
	Task      string      `json:"task"`
	Status    string      `json:"status"`
	Data      interface{} `json:"data,omitempty"`
	Completed bool        `json:"completed"`
}

// Success builds a completed success response for req
func Success(req Request, msg string, data interface{}) Response {
	return respond(req, StatusSuccess, msg, data)
}

// Failure builds a completed error response for req
func Failure(req Request, msg string) Response {
	return respond(req, StatusError, msg, nil)
}

func respond(req Request, status, msg string, data interface{}) Response {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Response{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		LastMsg:   msg,
		Task:      req.Task,
		Status:    status,
		Data:      data,
		Completed: true,
	}
}

// LoadAudioRequest is the payload for the load_audio task. Zero values fall
// back to the server's configured defaults.
type LoadAudioRequest struct {
	FilePath         string   `json:"file_path"`
	DeviceName       string   `json:"device_name"`
	AOChannels       []string `json:"ao_channels"`
	AIChannels       []string `json:"ai_channels"`
	DOChannels       []string `json:"do_channels,omitempty"`
	Volume           float64  `json:"volume,omitempty"`
	SamplesPerFrame  int      `json:"samples_per_frame,omitempty"`
	FramesPerBuffer  int      `json:"frames_per_buffer,omitempty"`
	FlipLRStereo     bool     `json:"flip_lr_stereo,omitempty"`
	CrossfadeSamples int64    `json:"crossfade_samples,omitempty"`
}

// SeekRequest is the payload for the seek task
type SeekRequest struct {
	Position float64 `json:"position"` // seconds
}

// VolumeRequest is the payload for the volume task
type VolumeRequest struct {
	Volume float64 `json:"volume"` // percent, 0..100
}

// FlipRequest is the payload for the flip_lr_stereo task
type FlipRequest struct {
	Flip bool `json:"flip"`
}

// PreloadRequest is the payload for the preload_next task
type PreloadRequest struct {
	FilePath string `json:"file_path"`
}

// TransitionRequest is the payload for the transition task. FilePath, when
// set, preloads that file before transitioning.
type TransitionRequest struct {
	FilePath     string `json:"file_path,omitempty"`
	UseCrossfade bool   `json:"use_crossfade"`
}
