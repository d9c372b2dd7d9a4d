package event

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrMalformedEnvelope marks bytes that cannot be decoded into a usable
// envelope. Such messages are dropped by the consumer, never retried.
var ErrMalformedEnvelope = errors.New("malformed envelope")

var codec = sonic.ConfigStd

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encode serializes an envelope, response envelope, or audit event to UTF-8
// JSON. Values that cannot be serialized directly are stringified rather than
// rejected.
func Encode(v any) ([]byte, error) {
	data, err := codec.Marshal(v)
	if err == nil {
		return data, nil
	}
	data, retryErr := codec.Marshal(stringifyUnsupported(v))
	if retryErr != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses envelope bytes, tolerating a UTF-8 byte-order-mark prefix.
// Malformed bytes and unknown operations yield ErrMalformedEnvelope.
func Decode(data []byte) (Envelope, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var env Envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.MessageID == "" {
		return Envelope{}, fmt.Errorf("%w: missing message_id", ErrMalformedEnvelope)
	}
	if env.CorrelationID == "" {
		return Envelope{}, fmt.Errorf("%w: missing request_id", ErrMalformedEnvelope)
	}
	if !env.Operation.Known() {
		return Envelope{}, fmt.Errorf("%w: unknown operation %q", ErrMalformedEnvelope, env.Operation)
	}
	return env, nil
}

// DecodePayload parses the envelope's opaque payload into the operation's
// typed request struct.
func DecodePayload[T any](env Envelope) (*T, error) {
	var payload T
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}
	if err := codec.Unmarshal(env.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &payload, nil
}

// stringifyUnsupported rewrites values JSON cannot represent (channels,
// functions, complex numbers) into their string form so opaque payload maps
// survive encoding.
func stringifyUnsupported(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = stringifyUnsupported(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = stringifyUnsupported(item)
		}
		return out
	default:
		if _, err := codec.Marshal(val); err != nil {
			return fmt.Sprint(val)
		}
		return val
	}
}
