package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SchemaError describes a frame that failed validation. ResponseTo holds
// the offending frame's seq when one was parsable, so the error reply can
// reference it.
type SchemaError struct {
	Detail     string
	ResponseTo *int64
}

func (e *SchemaError) Error() string {
	return e.Detail
}

// Decode parses and validates a frame against the base schema: a known
// request_type, a positive integer seq, a JSON object payload and no extra
// top-level fields. The per-verb payload is validated separately by
// DecodePayload.
func Decode(data []byte) (*Envelope, *SchemaError) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, &SchemaError{
			Detail:     fmt.Sprintf("malformed frame: %v", err),
			ResponseTo: extractSeq(data),
		}
	}
	if dec.More() {
		return nil, &SchemaError{Detail: "trailing data after frame", ResponseTo: extractSeq(data)}
	}

	if !knownTypes[env.RequestType] {
		return nil, &SchemaError{
			Detail:     fmt.Sprintf("unknown request_type %q", env.RequestType),
			ResponseTo: seqRef(env.Seq),
		}
	}
	if env.Seq <= 0 {
		return nil, &SchemaError{Detail: "seq must be a positive integer"}
	}
	if !isJSONObject(env.Payload) {
		return nil, &SchemaError{Detail: "payload must be an object", ResponseTo: seqRef(env.Seq)}
	}
	return &env, nil
}

// DecodePayload validates the envelope's payload against its per-verb
// schema and returns the concrete payload type.
func (e *Envelope) DecodePayload() (any, *SchemaError) {
	var payload any
	switch e.RequestType {
	case TypeAuthenticate:
		payload = &AuthenticatePayload{}
	case TypeSendMessage:
		payload = &SendMessagePayload{}
	case TypeRequestMatch:
		payload = &RequestMatchPayload{}
	case TypeUnrequestMatch:
		payload = &UnrequestMatchPayload{}
	case TypeSetPNToken:
		payload = &SetPNTokenPayload{}
	case TypeError:
		payload = &ErrorPayload{}
	case TypeReceiveMessage:
		payload = &ReceiveMessagePayload{}
	case TypeReceiveMatch:
		payload = &ReceiveMatchPayload{}
	case TypeDisconnect:
		payload = &DisconnectPayload{}
	default:
		return nil, &SchemaError{
			Detail:     fmt.Sprintf("unknown request_type %q", e.RequestType),
			ResponseTo: seqRef(e.Seq),
		}
	}

	dec := json.NewDecoder(bytes.NewReader(e.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, &SchemaError{
			Detail:     fmt.Sprintf("invalid %s payload: %v", e.RequestType, err),
			ResponseTo: seqRef(e.Seq),
		}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, &SchemaError{
			Detail:     fmt.Sprintf("invalid %s payload: %v", e.RequestType, err),
			ResponseTo: seqRef(e.Seq),
		}
	}
	return payload, nil
}

// Encode builds, validates and marshals an outbound frame. The frame is
// re-validated through the same inbound path before it is handed to the
// transport; a failure here is a programming error, not client input.
func Encode(requestType RequestType, seq int64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", requestType, err)
	}
	data, err := json.Marshal(Envelope{
		RequestType: requestType,
		Seq:         seq,
		Payload:     raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s frame: %w", requestType, err)
	}

	env, schemaErr := Decode(data)
	if schemaErr != nil {
		return nil, fmt.Errorf("outbound %s frame failed validation: %w", requestType, schemaErr)
	}
	if _, schemaErr = env.DecodePayload(); schemaErr != nil {
		return nil, fmt.Errorf("outbound %s frame failed validation: %w", requestType, schemaErr)
	}
	return data, nil
}

// extractSeq makes a best-effort attempt to recover the seq of a frame that
// failed base validation, so the schema error can still reference it.
func extractSeq(data []byte) *int64 {
	var probe struct {
		Seq int64 `json:"seq"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return seqRef(probe.Seq)
}

func seqRef(seq int64) *int64 {
	if seq <= 0 {
		return nil
	}
	return &seq
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
