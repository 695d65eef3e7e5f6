// Package serialization encodes execution state for storage. Every encoded
// value starts with a one-byte format tag so stored records can be read back
// after the default format changes.
package serialization

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/muaviaUsmani/tempo/pkg/execution"
)

// Format is the leading tag byte of an encoded value
type Format byte

const (
	FormatJSON     Format = 0x00
	FormatProtobuf Format = 0x01
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatProtobuf:
		return "protobuf"
	default:
		return fmt.Sprintf("format(0x%02X)", byte(f))
	}
}

// ParseFormat maps "json" or "protobuf" to a Format
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "protobuf", "proto":
		return FormatProtobuf, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

var (
	ErrUnknownFormat   = errors.New("unknown payload format")
	ErrMarshalFailed   = errors.New("failed to marshal payload")
	ErrUnmarshalFailed = errors.New("failed to unmarshal payload")
)

// StateCodec encodes execution.State values in its default format and
// decodes either format
type StateCodec struct {
	Default Format
}

// NewStateCodec returns a codec that writes format f
func NewStateCodec(f Format) *StateCodec {
	return &StateCodec{Default: f}
}

// Encode serializes s with the codec's default format
func (c *StateCodec) Encode(s execution.State) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch c.Default {
	case FormatJSON:
		data, err = json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("%w (JSON): %v", ErrMarshalFailed, err)
		}
	case FormatProtobuf:
		msg, convErr := StateToStruct(s)
		if convErr != nil {
			return nil, fmt.Errorf("%w (Protobuf): %v", ErrMarshalFailed, convErr)
		}
		data, err = proto.MarshalOptions{Deterministic: true}.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("%w (Protobuf): %v", ErrMarshalFailed, err)
		}
	default:
		return nil, fmt.Errorf("%w: format %d", ErrUnknownFormat, c.Default)
	}

	out := make([]byte, len(data)+1)
	out[0] = byte(c.Default)
	copy(out[1:], data)
	return out, nil
}

// Decode reads a value written in either format. Untagged JSON objects are
// accepted as well.
func (c *StateCodec) Decode(data []byte) (execution.State, error) {
	format, payload, err := DetectFormat(data)
	if err != nil {
		return execution.State{}, err
	}

	switch format {
	case FormatJSON:
		var s execution.State
		if err := json.Unmarshal(payload, &s); err != nil {
			return execution.State{}, fmt.Errorf("%w (JSON): %v", ErrUnmarshalFailed, err)
		}
		return s, nil
	default:
		msg := &structpb.Struct{}
		if err := proto.Unmarshal(payload, msg); err != nil {
			return execution.State{}, fmt.Errorf("%w (Protobuf): %v", ErrUnmarshalFailed, err)
		}
		s, err := StructToState(msg)
		if err != nil {
			return execution.State{}, fmt.Errorf("%w (Protobuf): %v", ErrUnmarshalFailed, err)
		}
		return s, nil
	}
}

// DetectFormat returns the format of data and the payload after the tag byte
func DetectFormat(data []byte) (Format, []byte, error) {
	if len(data) == 0 {
		return FormatJSON, nil, fmt.Errorf("%w: empty payload", ErrUnmarshalFailed)
	}

	switch f := Format(data[0]); f {
	case FormatJSON, FormatProtobuf:
		return f, data[1:], nil
	}

	if data[0] == '{' {
		return FormatJSON, data, nil
	}
	return FormatJSON, nil, fmt.Errorf("%w: unknown format byte 0x%02X", ErrUnknownFormat, data[0])
}
