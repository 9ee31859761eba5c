// ABOUTME: Entry point for the wavedaq playback server
// ABOUTME: Loads configuration and runs the websocket control endpoint
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wavedaq/wavedaq-go/internal/config"
	"github.com/wavedaq/wavedaq-go/internal/daq"
	"github.com/wavedaq/wavedaq-go/internal/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		host       = flag.String("host", "", "Listen address")
		port       = flag.Int("port", 0, "Listen port")
		name       = flag.String("name", "", "Instance name for mDNS")
		backend    = flag.String("backend", "", "Device backend: sim or oto")
		logFile    = flag.String("logfile", "", "Append logs to this file")
		noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Explicit flags win over config file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "name":
			cfg.Name = *name
		case "backend":
			cfg.Backend = *backend
		case "logfile":
			cfg.LogFile = *logFile
		case "no-mdns":
			cfg.EnableMDNS = !*noMDNS
		}
	})

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	open, err := deviceOpener(cfg.Backend)
	if err != nil {
		log.Fatalf("Backend error: %v", err)
	}

	srv := server.New(server.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		Name:             cfg.Name,
		EnableMDNS:       cfg.EnableMDNS,
		SamplesPerFrame:  cfg.SamplesPerFrame,
		FramesPerBuffer:  cfg.FramesPerBuffer,
		CrossfadeSamples: cfg.CrossfadeSamples,
		DefaultVolume:    cfg.DefaultVolume,
	}, daq.DefaultRegistry(), open)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received %v, shutting down", sig)
	case <-srv.Terminated():
		log.Printf("Termination requested by client")
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// deviceOpener maps a backend name to its device constructor
func deviceOpener(backend string) (daq.Opener, error) {
	switch backend {
	case "", "sim":
		return func(name string) (daq.Device, error) {
			return daq.NewRealtimeSimDevice(name), nil
		}, nil
	case "oto":
		return func(name string) (daq.Device, error) {
			return daq.NewOtoDevice(name), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
