package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	pkgrouter "github.com/jumpstarter-dev/jumpstarter/pkg/router"
	"github.com/jumpstarter-dev/jumpstarter/pkg/resource"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// Connection is an open client-side connection to a held lease: a local
// Unix socket whose accept loop dials the router for each new local
// connection, and a gRPC channel to that same socket carrying
// ExporterService for GetReport/DriverCall/StreamingDriverCall/Stream.
type Connection struct {
	Exporter jumpstarterv1.ExporterServiceClient

	conn     *grpc.ClientConn
	listener net.Listener
	sockPath string
}

// Connect implements the client side of connecting to a held lease: bind a
// temporary Unix listener, spawn an accept loop dialing the router for each
// accepted connection, then open a local gRPC channel to that same socket.
func Connect(ctx context.Context, leaseName, routerEndpoint, routerToken, sockDir string) (*Connection, error) {
	sock := filepath.Join(sockDir, leaseName+".sock")
	_ = os.Remove(sock)
	listener, err := net.Listen("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("client: listening on %s: %w", sock, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return acceptLoop(gctx, listener, routerEndpoint, routerToken) })

	conn, err := grpc.NewClient("unix:"+sock,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jumpstarterv1.Codec)),
	)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("client: dialing local socket %s: %w", sock, err)
	}

	return &Connection{
		Exporter: jumpstarterv1.NewExporterServiceClient(conn),
		conn:     conn,
		listener: listener,
		sockPath: sock,
	}, nil
}

// acceptLoop accepts local connections on listener and, for each one,
// dials the router endpoint and forwards the connection until close: each
// accepted local connection triggers a router Dial and handshake and
// forwards the local stream to the router stream until close.
func acceptLoop(ctx context.Context, listener net.Listener, endpoint, token string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return listener.Close()
	})
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return g.Wait()
			default:
				return err
			}
		}
		g.Go(func() error {
			defer conn.Close()
			local := xstream.FromUnixConn(conn)
			return pkgrouter.Dial(gctx, endpoint, token, local, true, nil)
		})
	}
}

// OpenResourceStream opens a Stream(kind=resource) request against the held
// lease's exporter: the client side of the resource upload path. It
// returns the resource.ClientStream handle to embed in a later DriverCall
// argument and the byte-stream end the caller writes the resource's bytes
// into. accept lists the encodings the caller can produce, in preference
// order; the exporter negotiates one from its own allow-set and reports
// both the minted uuid and the chosen encoding back as the stream's initial
// response metadata.
func (c *Connection) OpenResourceStream(ctx context.Context, accept []resource.Encoding) (*resource.ClientStream, xstream.ByteStream, error) {
	outgoing := metadata.Pairs("kind", "resource")
	if len(accept) > 0 {
		raw := make([]string, len(accept))
		for i, e := range accept {
			raw[i] = string(e)
		}
		outgoing.Append("x_jmp_accept_encoding", strings.Join(raw, ","))
	}

	stream, err := c.Exporter.Stream(metadata.NewOutgoingContext(ctx, outgoing))
	if err != nil {
		return nil, nil, fmt.Errorf("client: opening resource stream: %w", err)
	}

	header, err := stream.Header()
	if err != nil {
		return nil, nil, fmt.Errorf("client: reading resource stream header: %w", err)
	}
	rawUUID := firstOr(header.Get("x_jmp_resource_uuid"), "")
	if rawUUID == "" {
		return nil, nil, fmt.Errorf("client: exporter did not return a resource uuid")
	}
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("client: invalid resource uuid %q: %w", rawUUID, err)
	}
	encoding := firstOr(header.Get("x_jmp_content_encoding"), "")

	handle := &resource.ClientStream{UUID: id, ContentEncoding: encoding}
	return handle, xstream.FromExporterClient(stream), nil
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

// Close tears down the gRPC channel and the local listener.
func (c *Connection) Close() error {
	_ = c.conn.Close()
	err := c.listener.Close()
	_ = os.Remove(c.sockPath)
	return err
}
