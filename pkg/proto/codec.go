package proto

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/victor-base/victordb"
)

// Encode and decode modes are configured once at package init. Encoding keeps
// 32-bit floats at 32 bits and nil slices as empty containers, so every
// payload matches the documented shapes exactly. Decoding tolerates any
// integer width up to 64 bits and 64-bit floats (narrowed to f32), and is
// bounded so untrusted length fields can never drive unbounded allocation.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  8,
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Marshal serializes a message payload, enforcing the frame size limit.
func Marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	if len(data) > victordb.MaxMsgLen {
		return nil, victordb.ErrMessageTooLong
	}
	return data, nil
}

// Unmarshal parses a message payload. Any shape violation (wrong arity,
// wrong element type, trailing bytes) is reported as a malformed message.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", victordb.ErrMalformedMessage, err)
	}
	return nil
}
