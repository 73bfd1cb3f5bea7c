package sse

import (
	"log/slog"
	"sync"
	"time"
)

// KeepAliveWriter writes one keep-alive ping
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// TickerKeepAlive pings at a fixed interval until stopped or a write fails
type TickerKeepAlive struct {
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewTickerKeepAlive creates a keep-alive that pings every interval
func NewTickerKeepAlive(interval time.Duration) *TickerKeepAlive {
	return &TickerKeepAlive{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start pings writer in a goroutine. The returned channel closes when the
// pinger exits, either after Stop or after a failed write.
func (k *TickerKeepAlive) Start(writer KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})
	ticker := time.NewTicker(k.interval)

	go func() {
		defer close(stopped)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keep-alive write failed, stopping", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	}()

	return stopped
}

// Stop ends the pinger; safe to call more than once
func (k *TickerKeepAlive) Stop() {
	k.once.Do(func() { close(k.done) })
}
