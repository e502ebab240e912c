package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	intrnl "roomchat/internal"
	"roomchat/internal/rooms"
)

// Validate trims the client settings and checks the server URL is usable.
func (cfg *ClientConfig) Validate() error {
	cfg.ServerURL = strings.TrimSpace(cfg.ServerURL)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.RoomCode = rooms.NormalizeCode(cfg.RoomCode)
	if cfg.ServerURL == "" {
		return errors.New("server URL is required")
	}
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf("server URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server URL %q must use http, https, ws or wss", cfg.ServerURL)
	}
	return nil
}

// RunClient launches the terminal client, joining cfg.RoomCode directly when
// one is set.
func RunClient(cfg ClientConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return intrnl.RunClient(cfg.ServerURL, cfg.RoomCode, cfg.Username)
}
