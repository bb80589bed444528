package conn

import (
	"context"
	"crypto/tls"
	"net"
)

func tlsClient(nc net.Conn, cfg *tls.Config) *tls.Conn {
	return tls.Client(nc, cfg)
}

func tlsHandshake(ctx context.Context, tc *tls.Conn) error {
	return tc.HandshakeContext(ctx)
}
