package server

import "time"

// Server configuration constants
const (
	// HubTitle is the module name the websocket feed registers under.
	HubTitle = "websocket"

	// Per-connection limit on client messages
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Bound for one broadcast write to one client
	WriteTimeout = 2 * time.Second

	ReadHeaderTimeout = 5 * time.Second
)
