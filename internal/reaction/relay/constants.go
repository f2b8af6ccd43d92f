package relay

import "time"

const (
	// ServiceName and NotifyMethod identify the remote reactor.
	ServiceName  = "breakwatch.v1.Reactor"
	NotifyMethod = "/" + ServiceName + "/Notify"

	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	HealthCheckTimeout = 2 * time.Second
)
