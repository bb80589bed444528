package conn

import (
	"bufio"
	"io"

	"redisx/internal/rerr"
	"redisx/resp"
)

// frameReader turns a byte stream into successive complete RESP frames,
// growing an internal buffer only as far as Scan says it must.
type frameReader struct {
	r      *bufio.Reader
	buf    []byte
	chunk  []byte
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, 8192), chunk: make([]byte, 8192)}
}

// classify assigns a BufKind from the tag byte alone; monitor-line detection
// happens downstream because it depends on context (only meaningful while a
// MONITOR is active), not the tag.
func classify(data []byte) resp.BufKind {
	if len(data) == 0 {
		return resp.BufRegular
	}
	switch resp.Tag(data[0]) {
	case resp.TagPush:
		return resp.BufPush
	case resp.TagError, resp.TagBlobError:
		return resp.BufError
	default:
		return resp.BufRegular
	}
}

// Next blocks until one complete frame is available, parses it and returns a
// Response view over a freshly cut RespBuf. It never returns a frame spanning
// a partial read: on ErrNeedMoreData it keeps reading off the wire.
func (fr *frameReader) Next() (resp.Response, error) {
	for {
		n, err := resp.Scan(fr.buf)
		if err == nil {
			raw := make([]byte, n)
			copy(raw, fr.buf[:n])
			fr.buf = append(fr.buf[:0], fr.buf[n:]...)
			rb := resp.NewRespBuf(raw, classify(raw))
			f, _, ferr := resp.ParseFrame(rb)
			if ferr != nil {
				return resp.Response{}, ferr
			}
			return resp.FromFrame(f), nil
		}
		if err != resp.ErrNeedMoreData {
			return resp.Response{}, err
		}
		m, rerrv := fr.r.Read(fr.chunk)
		if m > 0 {
			fr.buf = append(fr.buf, fr.chunk[:m]...)
		}
		if rerrv != nil {
			return resp.Response{}, rerr.Wrap(rerr.KindIO, "conn.frameReader.Next", rerrv)
		}
	}
}
