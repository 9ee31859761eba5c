// ABOUTME: Websocket client for the control protocol
// ABOUTME: Sends task requests and matches their responses
package control

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wavedaq/wavedaq-go/pkg/protocol"
)

// Client is a control protocol connection. Safe for concurrent use; requests
// are serialized over the single websocket.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Dial connects to the control endpoint at host:port
func Dial(addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return DialURL(u.String())
}

// DialURL connects to a full websocket URL
func DialURL(rawURL string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &Client{conn: conn}, nil
}

// Do sends one task request and waits for its response. A response with
// error status is returned alongside a non-nil error.
func (c *Client) Do(task string, payload interface{}) (protocol.Response, error) {
	req := protocol.Request{ID: uuid.NewString(), Task: task}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return protocol.Response{}, fmt.Errorf("marshal %s payload: %w", task, err)
		}
		req.Data = raw
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(req); err != nil {
		return protocol.Response{}, fmt.Errorf("send %s: %w", task, err)
	}

	var resp protocol.Response
	for {
		if err := c.conn.ReadJSON(&resp); err != nil {
			return protocol.Response{}, fmt.Errorf("read %s response: %w", task, err)
		}
		if resp.ID == req.ID {
			break
		}
	}

	if resp.Status == protocol.StatusError {
		return resp, fmt.Errorf("%s failed: %s", task, resp.LastMsg)
	}
	return resp, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Healthcheck verifies the server is responding
func (c *Client) Healthcheck() error {
	_, err := c.Do(protocol.TaskHealthcheck, nil)
	return err
}

// LoadAudio loads a file onto a device
func (c *Client) LoadAudio(req protocol.LoadAudioRequest) (protocol.Response, error) {
	return c.Do(protocol.TaskLoadAudio, req)
}

// Play starts playback
func (c *Client) Play() error {
	_, err := c.Do(protocol.TaskPlay, nil)
	return err
}

// Pause pauses playback
func (c *Client) Pause() error {
	_, err := c.Do(protocol.TaskPause, nil)
	return err
}

// Resume continues paused playback
func (c *Client) Resume() error {
	_, err := c.Do(protocol.TaskResume, nil)
	return err
}

// Stop halts playback and unloads the session
func (c *Client) Stop() error {
	_, err := c.Do(protocol.TaskStop, nil)
	return err
}

// Seek moves the play position to seconds
func (c *Client) Seek(seconds float64) error {
	_, err := c.Do(protocol.TaskSeek, protocol.SeekRequest{Position: seconds})
	return err
}

// SetVolume sets the output amplitude percentage
func (c *Client) SetVolume(pct float64) error {
	_, err := c.Do(protocol.TaskVolume, protocol.VolumeRequest{Volume: pct})
	return err
}

// Status fetches the playback status
func (c *Client) Status() (protocol.Response, error) {
	return c.Do(protocol.TaskStatus, nil)
}

// PreloadNext queues a file for gapless transition
func (c *Client) PreloadNext(path string) error {
	_, err := c.Do(protocol.TaskPreloadNext, protocol.PreloadRequest{FilePath: path})
	return err
}

// Transition switches to the preloaded next file
func (c *Client) Transition(req protocol.TransitionRequest) error {
	_, err := c.Do(protocol.TaskTransition, req)
	return err
}

// Terminate asks the server process to shut down
func (c *Client) Terminate() error {
	_, err := c.Do(protocol.TaskTerminate, nil)
	return err
}
