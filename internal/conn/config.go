// Package conn implements the single-owner network handler: one goroutine
// per connection owns the socket and a FIFO pending-reply queue, accepting
// Messages from many caller goroutines over one inbox channel and delivering
// responses back in strict wire order.
package conn

import (
	"crypto/tls"
	"time"
)

// Config holds everything the handler needs to dial, authenticate and
// maintain one logical connection.
type Config struct {
	Addr string // host:port

	Username string
	Password string

	Database       int
	ConnectionName string
	EnableTracking bool

	ConnectTimeout time.Duration
	CommandTimeout time.Duration // 0 disables per-command deadlines

	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	MaxReconnectAttempts  int // 0 means unlimited

	RetryOnError        bool // default retry policy for idempotent commands
	MaxCommandAttempts  int  // including the first attempt; <=1 disables retry

	AutoResubscribe bool
	AutoRemonitor   bool

	TLSConfig *tls.Config

	// KeepAlive sets the TCP keepalive period; 0 leaves the OS default.
	KeepAlive time.Duration
	// NoDelay disables Nagle's algorithm (TCP_NODELAY) on the dialed socket.
	NoDelay bool

	InboxSize int // buffered capacity of the handler's inbox channel
}

// WithDefaults fills zero-valued fields with the library's defaults.
func (c Config) WithDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectInitialDelay == 0 {
		c.ReconnectInitialDelay = 50 * time.Millisecond
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 10 * time.Second
	}
	if c.MaxCommandAttempts == 0 {
		c.MaxCommandAttempts = 3
	}
	if c.InboxSize == 0 {
		c.InboxSize = 256
	}
	return c
}
