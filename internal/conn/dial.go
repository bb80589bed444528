package conn

import (
	"context"
	"net"
)

// Dialer opens a fresh transport connection to cfg.Addr. Tests substitute a
// net.Pipe-backed dialer; production uses DefaultDialer.
type Dialer func(ctx context.Context, cfg Config) (net.Conn, error)

// DefaultDialer dials TCP, wrapping the connection in TLS when cfg.TLSConfig
// is set.
func DefaultDialer(ctx context.Context, cfg Config) (net.Conn, error) {
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	if cfg.KeepAlive > 0 {
		d.KeepAlive = cfg.KeepAlive
	}
	nc, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	if cfg.NoDelay {
		if tc, ok := nc.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}
	}
	if cfg.TLSConfig != nil {
		tc := tlsClient(nc, cfg.TLSConfig)
		if err := tlsHandshake(ctx, tc); err != nil {
			nc.Close()
			return nil, err
		}
		return tc, nil
	}
	return nc, nil
}
