// Package router implements the client/exporter side of the router relay
// plane: dialing the router endpoint named in a Listen/Dial response and
// forwarding a local ByteStream over the resulting gRPC bidi stream, the
// same bearer-token-authenticated connection both peers of a pairing make
// independently (grounded on controller/pkg/token.BearerTokenFromContext
// and controller/pkg/stream.RouterServer.Stream, generalized from the
// server side that package implements to the client dial side this module
// needs — the router server itself is external and out of scope).
package router

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"

	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
	"github.com/jumpstarter-dev/jumpstarter/pkg/xstream"
)

// bearerCredentials layers a static bearer token as PerRPCCredentials, the
// client-side mirror of the "Bearer " prefix the router server strips in
// BearerTokenFromContext.
func bearerCredentials(token string) credentials.PerRPCCredentials {
	return oauth.TokenSource{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})}
}

// Dial connects to a router endpoint, authenticates with token, and forwards
// local until the peer half-closes, the context is cancelled, or a
// transport error occurs. It is called by both the exporter side (after
// Listen) and the client side (after Dial) of a lease, each with its own
// bearer token naming the same pairing key on the router.
func Dial(ctx context.Context, endpoint, token string, local xstream.ByteStream, insecureTransport bool, tlsConfig credentials.TransportCredentials) error {
	transportCreds := tlsConfig
	if insecureTransport {
		transportCreds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(transportCreds),
		grpc.WithPerRPCCredentials(bearerCredentials(token)),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jumpstarterv1.Codec)),
	)
	if err != nil {
		return fmt.Errorf("router: dialing %s: %w", endpoint, err)
	}
	defer conn.Close()

	client := jumpstarterv1.NewRouterServiceClient(conn)
	stream, err := client.Stream(ctx)
	if err != nil {
		return fmt.Errorf("router: opening stream to %s: %w", endpoint, err)
	}

	remote := xstream.FromRouterClient(stream)
	return xstream.Forward(ctx, local, remote)
}
