package transcriber

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonContentSubtype is passed to grpc.CallContentSubtype so the bridge's unary calls marshal
// through jsonCodec instead of requiring protoc-generated proto.Message request/response types.
const jsonContentSubtype = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec over plain Go structs, registered under the "json"
// content-subtype so the transcriber bridge can use grpc.ClientConn.Invoke without a .proto
// toolchain for its own request/response shapes.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonContentSubtype
}
