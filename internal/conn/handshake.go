package conn

import (
	"bufio"
	"net"

	"redisx/internal/rerr"
	"redisx/resp"
)

// handshakeResult reports what the handshake negotiated. Warning is
// non-empty when the server could not speak RESP3 or rejected an optional
// step; the handler logs it rather than swallowing the downgrade silently.
type handshakeResult struct {
	RESP3   bool
	Warning string
}

// runHandshake sends HELLO (falling back to legacy AUTH/SELECT on error),
// then CLIENT SETNAME / SELECT / CLIENT TRACKING as configured.
func runHandshake(nc net.Conn, cfg Config) (handshakeResult, error) {
	w := bufio.NewWriter(nc)
	fr := newFrameReader(nc)

	helloArgs := []any{resp.Int(3)}
	if cfg.Password != "" {
		if cfg.Username != "" {
			helloArgs = append(helloArgs, resp.StaticStr("AUTH"), resp.Str(cfg.Username), resp.Str(cfg.Password))
		} else {
			helloArgs = append(helloArgs, resp.StaticStr("AUTH"), resp.StaticStr("default"), resp.Str(cfg.Password))
		}
	}
	if cfg.ConnectionName != "" {
		helloArgs = append(helloArgs, resp.StaticStr("SETNAME"), resp.Str(cfg.ConnectionName))
	}

	hello := resp.Command{Name: "HELLO", Args: toArgSlice(helloArgs)}
	if err := writeAndFlush(w, hello); err != nil {
		return handshakeResult{}, err
	}
	reply, err := fr.Next()
	if err != nil {
		return handshakeResult{}, err
	}

	result := handshakeResult{RESP3: true}
	if reply.IsError() {
		// Server predates HELLO (Redis < 6) or rejected it; fall back to
		// legacy AUTH, remaining on RESP2.
		result.RESP3 = false
		code, msg := reply.Error()
		result.Warning = "server rejected HELLO (" + code + " " + msg + "); continuing on RESP2"
		if cfg.Password != "" {
			if err := authLegacy(w, fr, cfg); err != nil {
				return result, err
			}
		}
	}

	if cfg.Database != 0 {
		if err := writeAndFlush(w, resp.NewCommand("SELECT", cfg.Database)); err != nil {
			return result, err
		}
		if r, err := fr.Next(); err != nil {
			return result, err
		} else if r.IsError() {
			code, msg := r.Error()
			return result, rerr.Redis("conn.handshake(SELECT)", code, msg)
		}
	}

	if !result.RESP3 && cfg.ConnectionName != "" {
		if err := writeAndFlush(w, resp.NewCommand("CLIENT", "SETNAME", cfg.ConnectionName)); err != nil {
			return result, err
		}
		if _, err := fr.Next(); err != nil {
			return result, err
		}
	}

	if cfg.EnableTracking {
		if err := writeAndFlush(w, resp.NewCommand("CLIENT", "TRACKING", "ON")); err != nil {
			return result, err
		}
		if r, err := fr.Next(); err != nil {
			return result, err
		} else if r.IsError() {
			code, msg := r.Error()
			result.Warning = "CLIENT TRACKING rejected: " + code + " " + msg
		}
	}

	return result, nil
}

func authLegacy(w *bufio.Writer, fr *frameReader, cfg Config) error {
	var cmd resp.Command
	if cfg.Username != "" {
		cmd = resp.NewCommand("AUTH", cfg.Username, cfg.Password)
	} else {
		cmd = resp.NewCommand("AUTH", cfg.Password)
	}
	if err := writeAndFlush(w, cmd); err != nil {
		return err
	}
	r, err := fr.Next()
	if err != nil {
		return err
	}
	if r.IsError() {
		code, msg := r.Error()
		return rerr.Redis("conn.handshake(AUTH)", code, msg)
	}
	return nil
}

func writeAndFlush(w *bufio.Writer, cmd resp.Command) error {
	if _, err := w.Write(resp.EncodeCommand(cmd)); err != nil {
		return rerr.Wrap(rerr.KindIO, "conn.handshake", err)
	}
	if err := w.Flush(); err != nil {
		return rerr.Wrap(rerr.KindIO, "conn.handshake", err)
	}
	return nil
}

func toArgSlice(vs []any) []resp.Arg {
	out := make([]resp.Arg, 0, len(vs))
	for _, v := range vs {
		if a, ok := v.(resp.Arg); ok {
			out = append(out, a)
			continue
		}
		out = append(out, resp.Str(toString(v)))
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
