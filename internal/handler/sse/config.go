package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// KeepAliveInterval is how often a comment ping is written so idle
	// proxies keep the connection open
	KeepAliveInterval time.Duration
}

// DefaultConfig pings every 10 seconds, which most proxies tolerate
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
