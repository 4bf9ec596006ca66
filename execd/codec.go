package execd

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const (
	// DefaultPort is the port execd listens on inside the sandbox.
	DefaultPort = 49160

	// DefaultUser is the sandbox user commands and file operations run as
	// when the caller does not pick one.
	DefaultUser = "user"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, message)
}

// WithJSONCodec makes connect clients and handlers exchange the plain JSON
// messages defined in this package. Constructors here apply it already; the
// option is exported for callers assembling their own connect plumbing.
func WithJSONCodec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

func errUnimplemented(procedure string) error {
	return fmt.Errorf("%s is not implemented", procedure)
}
