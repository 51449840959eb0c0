package grpc

import (
	"google.golang.org/grpc/encoding"

	"github.com/levyledger/levyd/internal/storage/statestore"
)

// CodecName is the content-subtype clients pass to reach this service
// (grpc.CallContentSubtype(CodecName)).
const CodecName = "cbor"

// cborCodec adapts the state store's canonical CBOR encoding to the gRPC
// codec interface.
type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	return statestore.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	return statestore.Unmarshal(data, v)
}

func (cborCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
