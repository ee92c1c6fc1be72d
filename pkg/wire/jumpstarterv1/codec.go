package jumpstarterv1

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as the grpc wire codec for every service in this
// package; clients select it with grpc.CallContentSubtype (see Codec) rather
// than relying on grpc's default "proto" content-subtype, and a server picks
// it from the request's content-subtype, since the message types here are
// plain structs and not protoc-gen-go types.
const codecName = "jumpstarter-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Codec exposes the registered codec name for dial/server options, e.g.
// grpc.NewClient(addr, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jumpstarterv1.Codec))).
const Codec = codecName
