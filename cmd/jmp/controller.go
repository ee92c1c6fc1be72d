/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"fmt"
	"io"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"

	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// dialController opens a bearer-authenticated channel to a controller
// endpoint, the same credential shape pkg/router.Dial uses for the router
// plane.
func dialController(endpoint, token string) (jumpstarterv1.ControllerServiceClient, io.Closer, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jumpstarterv1.Codec)),
	}
	if token != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(oauth.TokenSource{
			TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		}))
	}
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("jmp: dialing controller %s: %w", endpoint, err)
	}
	return jumpstarterv1.NewControllerServiceClient(conn), conn, nil
}
