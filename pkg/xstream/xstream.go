// Package xstream implements the byte-stream abstraction shared by resource
// transfer, driver byte-stream methods, and the router relay plane: a small
// Send/Receive/SendEOF/Close interface, adapters onto real transports, and a
// bidirectional Forward helper grounded in controller/pkg/stream/forward.go's
// generic stream Forward, generalized here from gRPC stream pairs to any
// ByteStream pair.
package xstream

import (
	"context"
	"errors"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

// ByteStream is a bidirectional, half-closable byte pipe. It is the common
// currency exchanged between resource transfer, driver Stream methods, and
// the router relay: all three eventually reduce to forwarding bytes between
// two ByteStreams.
type ByteStream interface {
	// Send writes one chunk. Chunks are not length-framed by ByteStream
	// itself; implementations that sit on a framed transport (gRPC,
	// router) frame internally.
	Send(p []byte) error
	// Receive returns the next chunk, io.EOF once the peer half-closed
	// and no more data remains.
	Receive() ([]byte, error)
	// SendEOF signals that no more Sends will be made without closing the
	// read half; it is the Go analogue of the Python send_eof() method
	// and of a StreamRequest frame with CloseWrite=true.
	SendEOF() error
	// Close tears down both halves immediately.
	Close() error
}

// pipePair is the in-process ByteStream returned by Pipe, modeled on
// create_memory_stream in the original streams.py: two independent byte
// queues, one per direction.
type pipePair struct {
	tx     chan []byte
	rx     chan []byte
	txEOF  chan struct{}
	closed chan struct{}
}

// Pipe returns two connected in-memory ByteStreams, used to hand a driver's
// Stream implementation one end while the session forwards the other end to
// a resource table entry or a remote peer.
func Pipe() (ByteStream, ByteStream) {
	ab := make(chan []byte, 32)
	ba := make(chan []byte, 32)
	aEOF := make(chan struct{})
	bEOF := make(chan struct{})
	closed := make(chan struct{})
	a := &pipePair{tx: ab, rx: ba, txEOF: aEOF, closed: closed}
	b := &pipePair{tx: ba, rx: ab, txEOF: bEOF, closed: closed}
	return a, b
}

func (p *pipePair) Send(chunk []byte) error {
	cp := append([]byte(nil), chunk...)
	select {
	case p.tx <- cp:
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipePair) Receive() ([]byte, error) {
	select {
	case chunk, ok := <-p.rx:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-p.closed:
		return nil, io.ErrClosedPipe
	}
}

func (p *pipePair) SendEOF() error {
	select {
	case <-p.txEOF:
	default:
		close(p.txEOF)
		close(p.tx)
	}
	return nil
}

func (p *pipePair) Close() error {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
	return nil
}

// connStream adapts a net.Conn (used for TCP and Unix local sockets) to
// ByteStream.
type connStream struct {
	conn net.Conn
	buf  []byte
}

// FromConn wraps any net.Conn — TCP, Unix, or a pre-dialed serial-over-IP
// connection — as a ByteStream.
func FromConn(conn net.Conn) ByteStream {
	return &connStream{conn: conn, buf: make([]byte, 32*1024)}
}

// FromTCPConn and FromUnixConn are FromConn under the transport-specific
// names used where the call site's intent matters more than the fact that
// both happen to go through net.Conn.
func FromTCPConn(conn net.Conn) ByteStream  { return FromConn(conn) }
func FromUnixConn(conn net.Conn) ByteStream { return FromConn(conn) }

func (c *connStream) Send(p []byte) error {
	_, err := c.conn.Write(p)
	return err
}

func (c *connStream) Receive() ([]byte, error) {
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		chunk := append([]byte(nil), c.buf[:n]...)
		if err != nil && !errors.Is(err, io.EOF) {
			return chunk, nil
		}
		return chunk, err
	}
	return nil, err
}

func (c *connStream) SendEOF() error {
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (c *connStream) Close() error { return c.conn.Close() }

// reader adapts a ByteStream's Receive calls to io.Reader, used wherever a
// resource byte stream needs to be consumed by stdlib/ecosystem code that
// expects io.Reader (compress/gzip, storagewriter.Write).
type reader struct {
	s   ByteStream
	buf []byte
}

// NewReader wraps s as an io.Reader; each Read drains one Receive() chunk
// at a time, buffering any remainder for the next call.
func NewReader(s ByteStream) io.Reader {
	return &reader{s: s}
}

func (r *reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.s.Receive()
		if len(chunk) == 0 && err != nil {
			return 0, err
		}
		r.buf = chunk
		if err != nil {
			n := copy(p, r.buf)
			r.buf = r.buf[n:]
			return n, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Forward copies bytes bidirectionally between a and b until both
// directions have reached EOF or the context is cancelled, mirroring the
// generic Forward helper in controller/pkg/stream but operating over
// ByteStream instead of a typed gRPC Stream[T] pair.
func Forward(ctx context.Context, a, b ByteStream) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return copyDirection(ctx, a, b) })
	g.Go(func() error { return copyDirection(ctx, b, a) })
	return g.Wait()
}

func copyDirection(ctx context.Context, from, to ByteStream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chunk, err := from.Receive()
		if len(chunk) > 0 {
			if serr := to.Send(chunk); serr != nil {
				if errors.Is(serr, io.EOF) || errors.Is(serr, io.ErrClosedPipe) {
					return nil
				}
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return to.SendEOF()
			}
			if errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}
