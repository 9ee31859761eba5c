// ABOUTME: Websocket control server
// ABOUTME: Accepts task connections and owns the active playback transport
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/wavedaq/wavedaq-go/internal/daq"
	"github.com/wavedaq/wavedaq-go/internal/discovery"
	"github.com/wavedaq/wavedaq-go/internal/transport"
	"github.com/wavedaq/wavedaq-go/pkg/protocol"
)

// Config holds server configuration
type Config struct {
	Host             string
	Port             int
	Name             string
	EnableMDNS       bool
	SamplesPerFrame  int
	FramesPerBuffer  int
	CrossfadeSamples int64
	DefaultVolume    float64
}

// Server serves the websocket control protocol. One playback transport is
// active at a time; load_audio replaces it.
type Server struct {
	config   Config
	registry *daq.Registry
	open     daq.Opener

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	advertiser *discovery.Advertiser

	mu        sync.Mutex
	transport *transport.Transport

	terminate chan struct{}
	termOnce  sync.Once
}

// New creates a server that opens devices through open
func New(config Config, registry *daq.Registry, open daq.Opener) *Server {
	s := &Server{
		config:   config,
		registry: registry,
		open:     open,
		upgrader: websocket.Upgrader{
			// Trusted local networks only; non-browser clients send no Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:       http.NewServeMux(),
		terminate: make(chan struct{}),
	}
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the control endpoint
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves the control endpoint until Shutdown. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}

	if s.config.EnableMDNS {
		adv, err := discovery.Advertise(s.config.Name, s.config.Port)
		if err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		} else {
			s.advertiser = adv
		}
	}

	log.Printf("Control server listening on ws://%s/ws", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Terminated is closed when a client requests process termination
func (s *Server) Terminated() <-chan struct{} { return s.terminate }

// Shutdown stops advertising, releases the transport and closes the
// listener
func (s *Server) Shutdown(ctx context.Context) error {
	if s.advertiser != nil {
		s.advertiser.Shutdown()
		s.advertiser = nil
	}

	s.mu.Lock()
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleWebSocket runs one control connection: a loop of task requests,
// each answered with exactly one response
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("Control connection from %s", conn.RemoteAddr())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Connection error: %v", err)
			}
			return
		}

		var req protocol.Request
		if err := json.Unmarshal(data, &req); err != nil {
			conn.WriteJSON(protocol.Failure(protocol.Request{}, fmt.Sprintf("invalid request: %v", err)))
			continue
		}

		resp := s.dispatch(req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("Write failed: %v", err)
			return
		}
	}
}
