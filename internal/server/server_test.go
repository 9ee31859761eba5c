// ABOUTME: Tests for the websocket control server
// ABOUTME: Drives the task protocol end to end over a real connection
package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wavedaq/wavedaq-go/internal/audiotest"
	"github.com/wavedaq/wavedaq-go/internal/daq"
	"github.com/wavedaq/wavedaq-go/internal/transport"
	"github.com/wavedaq/wavedaq-go/pkg/control"
	"github.com/wavedaq/wavedaq-go/pkg/protocol"
)

func newTestServer(t *testing.T) (*Server, *control.Client, *daq.SimDevice) {
	t.Helper()

	dev := daq.NewSimDevice("SimDev1")
	s := New(Config{
		Name:            "wavedaq-test",
		SamplesPerFrame: 100,
		FramesPerBuffer: 4,
		DefaultVolume:   100,
	}, daq.NewRegistry(), func(name string) (daq.Device, error) {
		return dev, nil
	})

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, err := control.DialURL(wsURL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	return s, c, dev
}

func loadRequest(path string) protocol.LoadAudioRequest {
	return protocol.LoadAudioRequest{
		FilePath:   path,
		DeviceName: "SimDev1",
		AOChannels: []string{"SimDev1/ao0"},
		AIChannels: []string{"SimDev1/ai0"},
		DOChannels: []string{"SimDev1/port0/line0"},
	}
}

func statusData(t *testing.T, resp protocol.Response) transport.Status {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal status data: %v", err)
	}
	var st transport.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal status data: %v", err)
	}
	return st
}

func TestHealthcheckAndPID(t *testing.T) {
	_, c, _ := newTestServer(t)

	if err := c.Healthcheck(); err != nil {
		t.Errorf("healthcheck: %v", err)
	}

	resp, err := c.Do(protocol.TaskPID, nil)
	if err != nil {
		t.Fatalf("pid: %v", err)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["pid"] == nil {
		t.Errorf("expected pid in response, got %+v", resp.Data)
	}
}

func TestUnknownTask(t *testing.T) {
	_, c, _ := newTestServer(t)

	resp, err := c.Do("warp_drive", nil)
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if resp.Status != protocol.StatusError {
		t.Errorf("expected error status, got %s", resp.Status)
	}
}

func TestTasksWithoutLoadedAudio(t *testing.T) {
	_, c, _ := newTestServer(t)

	if err := c.Play(); err == nil {
		t.Error("play without audio must fail")
	}
	if err := c.Seek(1); err == nil {
		t.Error("seek without audio must fail")
	}

	resp, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	if data["state"] != "idle" {
		t.Errorf("expected idle state, got %v", data["state"])
	}
}

func TestLoadPlayPauseResumeStop(t *testing.T) {
	_, c, dev := newTestServer(t)
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 1000, audiotest.Ramp(0))

	resp, err := c.LoadAudio(loadRequest(path))
	if err != nil {
		t.Fatalf("load_audio: %v", err)
	}
	st := statusData(t, resp)
	if st.State != transport.StateLoaded || st.TotalSamples != 1000 {
		t.Fatalf("unexpected load status: %+v", st)
	}

	if err := c.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	dev.Step(2)

	if err := c.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	resp, err = c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	st = statusData(t, resp)
	if !st.Paused || st.PausePosition != 200 {
		t.Fatalf("expected pause at 200, got %+v", st)
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	resp, err = c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	st = statusData(t, resp)
	if st.State != transport.StateIdle || st.AudioLoaded {
		t.Fatalf("expected idle after stop, got %+v", st)
	}
}

func TestSeekAndVolumeTasks(t *testing.T) {
	_, c, _ := newTestServer(t)
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 1000, audiotest.Ramp(0))

	if _, err := c.LoadAudio(loadRequest(path)); err != nil {
		t.Fatalf("load_audio: %v", err)
	}

	if err := c.Seek(0.25); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if err := c.SetVolume(40); err != nil {
		t.Fatalf("volume: %v", err)
	}
	if err := c.SetVolume(120); err == nil {
		t.Error("volume above 100 must fail")
	}

	resp, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	st := statusData(t, resp)
	if st.PausePosition != 250 {
		t.Errorf("expected seek to sample 250, got %d", st.PausePosition)
	}
	if st.VoltageScale != 0.4 {
		t.Errorf("expected scale 0.4, got %v", st.VoltageScale)
	}
}

func TestTransitionTaskWithInlinePreload(t *testing.T) {
	_, c, dev := newTestServer(t)
	dir := t.TempDir()
	a := audiotest.WriteWAV(t, dir, "a.wav", 1000, 1, 2000, audiotest.Constant(16384))
	b := audiotest.WriteWAV(t, dir, "b.wav", 1000, 1, 1500, audiotest.Constant(8192))

	if _, err := c.LoadAudio(loadRequest(a)); err != nil {
		t.Fatalf("load_audio: %v", err)
	}
	if err := c.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	dev.Step(2)

	if err := c.Transition(protocol.TransitionRequest{FilePath: b, UseCrossfade: true}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	resp, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	st := statusData(t, resp)
	if st.CurrentFile != b {
		t.Errorf("expected transition to %s, got %s", b, st.CurrentFile)
	}
	if !st.Transition.CrossfadeActive {
		t.Error("expected active crossfade")
	}
}

func TestTerminateTask(t *testing.T) {
	s, c, _ := newTestServer(t)

	if err := c.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	select {
	case <-s.Terminated():
	default:
		t.Error("terminate must signal the server")
	}
}

func TestFlipStereoTask(t *testing.T) {
	_, c, _ := newTestServer(t)
	dir := t.TempDir()
	path := audiotest.WriteWAV(t, dir, "a.wav", 1000, 2, 500, audiotest.Constant(16384))

	if _, err := c.LoadAudio(loadRequest(path)); err != nil {
		t.Fatalf("load_audio: %v", err)
	}
	if _, err := c.Do(protocol.TaskFlipLRStereo, protocol.FlipRequest{Flip: true}); err != nil {
		t.Fatalf("flip: %v", err)
	}

	resp, err := c.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st := statusData(t, resp); !st.FlipLRStereo {
		t.Error("expected flip flag set")
	}
}
