// Package redisx is the public client front-end: Client, Pipeline,
// Transaction, PubSubStream and MonitorStream, all layered on top of the
// internal/conn network handler.
package redisx

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"redisx/internal/conn"
	"redisx/internal/rerr"
)

// Config is the connection configuration surface redisx exposes; it is the
// same shape internal/conn uses so callers never have to know the package
// boundary exists.
type Config = conn.Config

// ParseURI parses a Redis connection URI of the form
//
//	redis://[username[:password]@]host[:port][/database][?key=value&...]
//	rediss://... (TLS, same grammar)
//
// Missing port defaults to 6379. A username without a password is rejected:
// the grammar allows omitting both credentials, but not the password alone.
// Recognized query options: connection_timeout, command_timeout,
// retry_on_error, reconnect_delay_ms, max_command_attempts, connection_name,
// keep_alive, no_delay, wait_between_failures_ms (all durations are
// milliseconds). For a redis+sentinel:// URI, use ParseSentinelURI instead.
func ParseURI(uri string) (Config, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Config{}, rerr.Wrap(rerr.KindConfig, "redisx.ParseURI", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return Config{}, rerr.New(rerr.KindConfig, "redisx.ParseURI", "unsupported scheme: "+u.Scheme)
	}
	if u.Host == "" {
		return Config{}, rerr.New(rerr.KindConfig, "redisx.ParseURI", "missing host")
	}

	cfg := Config{Addr: hostWithDefaultPort(u.Host)}
	if err := applyUserinfo(&cfg, u); err != nil {
		return Config{}, err
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		db, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, rerr.New(rerr.KindConfig, "redisx.ParseURI", "database path segment is not numeric: "+p)
		}
		cfg.Database = db
	}
	if u.Scheme == "rediss" {
		cfg.TLSConfig = tlsConfigFor(hostOnly(cfg.Addr))
	}
	if err := applyQueryOptions(&cfg, u.Query()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SentinelConfig is the parsed shape of a redis+sentinel:// URI: a set of
// sentinel endpoints, the monitored master's service name, and credentials
// for talking to the sentinels themselves. Resolving ServiceName to the
// current master/replica address is cluster/sentinel topology discovery,
// which spec.md §1 names as an external collaborator — this type only
// carries the parsed shape for that collaborator to consume; Base carries
// every non-addressing option (timeouts, retry policy, ...) to apply once an
// address has been resolved.
type SentinelConfig struct {
	Endpoints        []string
	ServiceName      string
	SentinelUsername string
	SentinelPassword string
	Base             Config
}

// ParseSentinelURI parses a redis+sentinel://host1:port1[,host2:port2...]/service_name?...
// URI. The path segment (not a database index here) names the monitored
// service.
func ParseSentinelURI(uri string) (SentinelConfig, error) {
	// net/url reads everything after the host's last ':' as a port, so the
	// comma-separated host list is cut out and replaced by a placeholder host
	// before parsing.
	const scheme = "redis+sentinel://"
	var hostList string
	if rest, ok := strings.CutPrefix(uri, scheme); ok {
		end := len(rest)
		if i := strings.IndexAny(rest, "/?#"); i >= 0 {
			end = i
		}
		start := strings.LastIndexByte(rest[:end], '@') + 1
		hostList = rest[start:end]
		uri = scheme + rest[:start] + "sentinel" + rest[end:]
	}
	u, err := url.Parse(uri)
	if err != nil {
		return SentinelConfig{}, rerr.Wrap(rerr.KindConfig, "redisx.ParseSentinelURI", err)
	}
	if u.Scheme != "redis+sentinel" {
		return SentinelConfig{}, rerr.New(rerr.KindConfig, "redisx.ParseSentinelURI", "unsupported scheme: "+u.Scheme)
	}
	if hostList == "" {
		return SentinelConfig{}, rerr.New(rerr.KindConfig, "redisx.ParseSentinelURI", "missing sentinel host list")
	}

	var sc SentinelConfig
	for _, h := range strings.Split(hostList, ",") {
		sc.Endpoints = append(sc.Endpoints, hostWithDefaultPort(h))
	}
	sc.ServiceName = strings.Trim(u.Path, "/")
	if sc.ServiceName == "" {
		return SentinelConfig{}, rerr.New(rerr.KindConfig, "redisx.ParseSentinelURI", "missing service name path segment")
	}

	base := Config{}
	if err := applyUserinfo(&base, u); err != nil {
		return SentinelConfig{}, err
	}
	q := u.Query()
	sc.SentinelUsername = q.Get("sentinel_username")
	sc.SentinelPassword = q.Get("sentinel_password")
	if err := applyQueryOptions(&base, q); err != nil {
		return SentinelConfig{}, err
	}
	sc.Base = base
	return sc, nil
}

func applyUserinfo(cfg *Config, u *url.URL) error {
	if u.User == nil {
		return nil
	}
	cfg.Username = u.User.Username()
	pw, hasPw := u.User.Password()
	if cfg.Username != "" && !hasPw {
		return rerr.New(rerr.KindConfig, "redisx.ParseURI", "username given without a password")
	}
	cfg.Password = pw
	return nil
}

func applyQueryOptions(cfg *Config, q url.Values) error {
	if v := q.Get("client_name"); v != "" {
		cfg.ConnectionName = v
	}
	if v := q.Get("connection_name"); v != "" {
		cfg.ConnectionName = v
	}
	if v := q.Get("tracking"); v == "1" || v == "true" {
		cfg.EnableTracking = true
	}
	if v, ok, err := boolOpt(q, "retry_on_error"); err != nil {
		return err
	} else if ok {
		cfg.RetryOnError = v
	}
	if v, ok, err := boolOpt(q, "no_delay"); err != nil {
		return err
	} else if ok {
		cfg.NoDelay = v
	}
	if v, ok, err := intOpt(q, "max_command_attempts"); err != nil {
		return err
	} else if ok {
		cfg.MaxCommandAttempts = v
	}
	if v, ok, err := durationMsOpt(q, "connection_timeout"); err != nil {
		return err
	} else if ok {
		cfg.ConnectTimeout = v
	}
	if v, ok, err := durationMsOpt(q, "command_timeout"); err != nil {
		return err
	} else if ok {
		cfg.CommandTimeout = v
	}
	if v, ok, err := durationMsOpt(q, "reconnect_delay_ms"); err != nil {
		return err
	} else if ok {
		cfg.ReconnectMaxDelay = v
	}
	if v, ok, err := durationMsOpt(q, "wait_between_failures_ms"); err != nil {
		return err
	} else if ok {
		cfg.ReconnectInitialDelay = v
	}
	if v, ok, err := durationMsOpt(q, "keep_alive"); err != nil {
		return err
	} else if ok {
		cfg.KeepAlive = v
	}
	return nil
}

func boolOpt(q url.Values, key string) (bool, bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, rerr.New(rerr.KindConfig, "redisx.ParseURI", "option "+key+" is not a boolean: "+v)
	}
	return b, true, nil
}

func intOpt(q url.Values, key string) (int, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, rerr.New(rerr.KindConfig, "redisx.ParseURI", "option "+key+" is not an integer: "+v)
	}
	return n, true, nil
}

func durationMsOpt(q url.Values, key string) (time.Duration, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, rerr.New(rerr.KindConfig, "redisx.ParseURI", "option "+key+" is not an integer: "+v)
	}
	return time.Duration(n) * time.Millisecond, true, nil
}

func hostWithDefaultPort(host string) string {
	if !strings.Contains(host, ":") {
		return host + ":6379"
	}
	return host
}

func hostOnly(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
