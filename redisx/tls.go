package redisx

import "crypto/tls"

func tlsConfigFor(serverName string) *tls.Config {
	return &tls.Config{ServerName: serverName}
}
