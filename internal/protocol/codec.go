package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope field names. Matching is exact (case-sensitive).
const (
	fieldType = "type"
	fieldData = "data"
)

// ErrUnknownMessageType is wrapped by a DecodeError when the discriminator is
// not a known message type, and returned by Encode for foreign values.
var ErrUnknownMessageType = errors.New("unknown message type")

// DecodeError describes why an inbound frame could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid message: %s: %v", e.Reason, e.Err)
	}
	return "invalid message: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(reason string, err error) *DecodeError {
	return &DecodeError{Reason: reason, Err: err}
}

// outbound is the wire envelope for encoding.
type outbound struct {
	Type MessageType `json:"type"`
	Data any         `json:"data"`
}

// Decode parses one text frame into a ClientMessage. Any failure is returned
// as a *DecodeError; Decode never panics on untrusted input.
func Decode(data []byte) (ClientMessage, error) {
	typ, body, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeCommand:
		fields, err := objectFields(body)
		if err != nil {
			return nil, err
		}
		var rec *bool
		if err := field(fields, "rec", &rec); err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, decodeErr(`missing field "rec"`, nil)
		}
		return Command{Rec: *rec}, nil

	case TypeParameter:
		fields, err := objectFields(body)
		if err != nil {
			return nil, err
		}
		var p Parameter
		// Absent and null both leave Amplitude nil.
		if err := field(fields, "amplitude", &p.Amplitude); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, decodeErr(fmt.Sprintf("type %q", typ), ErrUnknownMessageType)
	}
}

// DecodeServer parses a reply frame. Used by clients.
func DecodeServer(data []byte) (ServerMessage, error) {
	typ, body, err := splitEnvelope(data)
	if err != nil {
		return nil, err
	}

	fields, err := objectFields(body)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeAck:
		var status *string
		if err := field(fields, "status", &status); err != nil {
			return nil, err
		}
		if status == nil {
			return nil, decodeErr(`missing field "status"`, nil)
		}
		return Ack{Status: *status}, nil

	case TypeError:
		var msg *string
		if err := field(fields, "message", &msg); err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, decodeErr(`missing field "message"`, nil)
		}
		return Error{Message: *msg}, nil

	default:
		return nil, decodeErr(fmt.Sprintf("type %q", typ), ErrUnknownMessageType)
	}
}

// Encode serializes a reply. It only fails for ServerMessage implementations
// defined outside this package.
func Encode(msg ServerMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Ack, Error:
		return json.Marshal(outbound{Type: m.MessageType(), Data: m})
	case *Ack:
		return Encode(*m)
	case *Error:
		return Encode(*m)
	default:
		return nil, fmt.Errorf("encode %T: %w", msg, ErrUnknownMessageType)
	}
}

// EncodeClient serializes a request. Used by clients.
func EncodeClient(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case Command, Parameter:
		return json.Marshal(outbound{Type: m.MessageType(), Data: m})
	case *Command:
		return EncodeClient(*m)
	case *Parameter:
		return EncodeClient(*m)
	default:
		return nil, fmt.Errorf("encode %T: %w", msg, ErrUnknownMessageType)
	}
}

// splitEnvelope extracts the discriminator and the raw data payload.
func splitEnvelope(data []byte) (MessageType, json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, decodeErr("malformed JSON", err)
	}
	if env == nil {
		return "", nil, decodeErr("message must be a JSON object", nil)
	}
	if err := checkDuplicateKeys(data); err != nil {
		return "", nil, err
	}

	rawType, ok := env[fieldType]
	if !ok {
		return "", nil, decodeErr(`missing field "type"`, nil)
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil {
		return "", nil, decodeErr(`field "type" must be a string`, err)
	}

	return MessageType(typ), env[fieldData], nil
}

// objectFields splits a data payload into its members. The payload must be
// present and a JSON object.
func objectFields(body json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, decodeErr(`missing field "data"`, nil)
	}
	if trimmed[0] != '{' {
		return nil, decodeErr(`field "data" must be an object`, nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, decodeErr(`malformed field "data"`, err)
	}
	if err := checkDuplicateKeys(trimmed); err != nil {
		return nil, err
	}
	return fields, nil
}

// checkDuplicateKeys rejects an object that names the same member twice.
// obj must already be known to be a valid JSON object; nested values are
// not inspected.
func checkDuplicateKeys(obj []byte) error {
	dec := json.NewDecoder(bytes.NewReader(obj))
	if _, err := dec.Token(); err != nil {
		return decodeErr("malformed JSON", err)
	}

	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return decodeErr("malformed JSON", err)
		}
		key, _ := tok.(string)
		if _, dup := seen[key]; dup {
			return decodeErr(fmt.Sprintf("duplicate field %q", key), nil)
		}
		seen[key] = struct{}{}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return decodeErr("malformed JSON", err)
		}
	}
	return nil
}

// field decodes fields[name] into dst when present. dst is left untouched
// when the member is absent.
func field(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return decodeErr(fmt.Sprintf("field %q has the wrong type", name), err)
	}
	return nil
}
