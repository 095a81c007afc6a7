package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values.
const (
	DefaultServer = "http://localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Config holds client configuration.
type Config struct {
	// ServerURL is the base HTTP URL of the signaling server.
	ServerURL string

	// WebSocketURL is derived from ServerURL.
	WebSocketURL string

	// STUNServer is the base connectivity server; relay servers fetched
	// from the server are merged on top of it.
	STUNServer string
}

// Options carries CLI flag overrides.
type Options struct {
	Server     string
	STUNServer string
}

// Load reads configuration with priority: CLI flags > environment variables >
// defaults.
func Load(opts Options) (*Config, error) {
	serverURL := opts.Server
	if serverURL == "" {
		serverURL = os.Getenv("STREEEM_SERVER")
	}
	if serverURL == "" {
		serverURL = DefaultServer
	}
	serverURL = strings.TrimRight(serverURL, "/")

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("STUN_SERVER")
	}
	if stun == "" {
		stun = DefaultSTUN
	}

	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerURL:    serverURL,
		WebSocketURL: wsURL,
		STUNServer:   stun,
	}, nil
}

func websocketURL(serverURL string) (string, error) {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://") + "/ws", nil
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://") + "/ws", nil
	default:
		return "", fmt.Errorf("server URL must be http or https: %s", serverURL)
	}
}
