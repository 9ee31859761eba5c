// ABOUTME: Task handlers for the control protocol
// ABOUTME: Maps task names onto transport operations
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/wavedaq/wavedaq-go/internal/transport"
	"github.com/wavedaq/wavedaq-go/pkg/protocol"
)

// dispatch routes one request to its task handler
func (s *Server) dispatch(req protocol.Request) protocol.Response {
	switch req.Task {
	case protocol.TaskHealthcheck:
		return protocol.Success(req, "ok", map[string]any{"status": "ok"})
	case protocol.TaskPID:
		return protocol.Success(req, "ok", map[string]any{"pid": os.Getpid()})
	case protocol.TaskTerminate:
		s.termOnce.Do(func() { close(s.terminate) })
		return protocol.Success(req, "terminating", nil)
	case protocol.TaskLoadAudio:
		return s.handleLoadAudio(req)
	case protocol.TaskStatus:
		return s.handleStatus(req)
	case protocol.TaskPlay:
		return s.withTransport(req, "playback started", func(tr *transport.Transport) error {
			return tr.Play()
		})
	case protocol.TaskPause:
		return s.withTransport(req, "playback paused", func(tr *transport.Transport) error {
			return tr.Pause()
		})
	case protocol.TaskResume:
		return s.withTransport(req, "playback resumed", func(tr *transport.Transport) error {
			return tr.Resume()
		})
	case protocol.TaskStop:
		return s.withTransport(req, "playback stopped", func(tr *transport.Transport) error {
			return tr.Stop()
		})
	case protocol.TaskSeek:
		return s.handleSeek(req)
	case protocol.TaskVolume:
		return s.handleVolume(req)
	case protocol.TaskFlipLRStereo:
		return s.handleFlip(req)
	case protocol.TaskPreloadNext:
		return s.handlePreloadNext(req)
	case protocol.TaskTransition:
		return s.handleTransition(req)
	default:
		return protocol.Failure(req, fmt.Sprintf("unknown task: %s", req.Task))
	}
}

// withTransport runs op against the active transport, failing cleanly when
// nothing is loaded
func (s *Server) withTransport(req protocol.Request, okMsg string, op func(tr *transport.Transport) error) protocol.Response {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr == nil {
		return protocol.Failure(req, "no audio loaded")
	}
	if err := op(tr); err != nil {
		return protocol.Failure(req, err.Error())
	}
	return protocol.Success(req, okMsg, tr.Status())
}

func (s *Server) handleLoadAudio(req protocol.Request) protocol.Response {
	var p protocol.LoadAudioRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid load_audio payload: %v", err))
	}
	if p.FilePath == "" {
		return protocol.Failure(req, "file_path is required")
	}
	if p.DeviceName == "" {
		return protocol.Failure(req, "device_name is required")
	}

	cfg := transport.Config{
		DeviceName:       p.DeviceName,
		AOChannels:       p.AOChannels,
		AIChannels:       p.AIChannels,
		DOChannels:       p.DOChannels,
		SamplesPerFrame:  orDefault(p.SamplesPerFrame, s.config.SamplesPerFrame),
		FramesPerBuffer:  orDefault(p.FramesPerBuffer, s.config.FramesPerBuffer),
		Volume:           orDefaultF(p.Volume, s.config.DefaultVolume),
		FlipStereo:       p.FlipLRStereo,
		CrossfadeSamples: orDefault64(p.CrossfadeSamples, s.config.CrossfadeSamples),
	}

	tr, err := transport.New(cfg, s.registry, s.open)
	if err != nil {
		return protocol.Failure(req, err.Error())
	}
	if err := tr.LoadAudio(p.FilePath); err != nil {
		tr.Close()
		return protocol.Failure(req, err.Error())
	}

	s.mu.Lock()
	old := s.transport
	s.transport = tr
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	return protocol.Success(req, fmt.Sprintf("loaded %s", p.FilePath), tr.Status())
}

func (s *Server) handleStatus(req protocol.Request) protocol.Response {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr == nil {
		return protocol.Success(req, "ok", map[string]any{
			"state":        string(transport.StateIdle),
			"audio_loaded": false,
		})
	}
	return protocol.Success(req, "ok", tr.Status())
}

func (s *Server) handleSeek(req protocol.Request) protocol.Response {
	var p protocol.SeekRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid seek payload: %v", err))
	}
	return s.withTransport(req, fmt.Sprintf("seeked to %.3f s", p.Position), func(tr *transport.Transport) error {
		return tr.Seek(p.Position)
	})
}

func (s *Server) handleVolume(req protocol.Request) protocol.Response {
	var p protocol.VolumeRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid volume payload: %v", err))
	}
	return s.withTransport(req, fmt.Sprintf("volume set to %.0f%%", p.Volume), func(tr *transport.Transport) error {
		return tr.SetVolume(p.Volume)
	})
}

func (s *Server) handleFlip(req protocol.Request) protocol.Response {
	var p protocol.FlipRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid flip payload: %v", err))
	}
	return s.withTransport(req, fmt.Sprintf("stereo flip set to %v", p.Flip), func(tr *transport.Transport) error {
		tr.SetFlipStereo(p.Flip)
		return nil
	})
}

func (s *Server) handlePreloadNext(req protocol.Request) protocol.Response {
	var p protocol.PreloadRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid preload payload: %v", err))
	}
	if p.FilePath == "" {
		return protocol.Failure(req, "file_path is required")
	}
	return s.withTransport(req, fmt.Sprintf("preloaded %s", p.FilePath), func(tr *transport.Transport) error {
		return tr.PreloadNext(p.FilePath)
	})
}

func (s *Server) handleTransition(req protocol.Request) protocol.Response {
	var p protocol.TransitionRequest
	if err := json.Unmarshal(req.Data, &p); err != nil {
		return protocol.Failure(req, fmt.Sprintf("invalid transition payload: %v", err))
	}
	return s.withTransport(req, "transition started", func(tr *transport.Transport) error {
		if p.FilePath != "" {
			if err := tr.PreloadNext(p.FilePath); err != nil {
				return err
			}
		}
		if err := tr.Transition(p.UseCrossfade); err != nil {
			return err
		}
		log.Printf("Transitioned to next file (crossfade=%v)", p.UseCrossfade)
		return nil
	})
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefault64(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultF(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}
