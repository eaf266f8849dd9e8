package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itay-sho/co-buddies-server/src/models"
)

func TestDecode_BaseSchema(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantErr    bool
		wantSeqRef *int64
	}{
		{
			name:  "valid frame",
			frame: `{"request_type":"authenticate","seq":1,"payload":{"access_token":"abc"}}`,
		},
		{
			name:    "unknown request_type",
			frame:   `{"request_type":"dance","seq":3,"payload":{}}`,
			wantErr: true, wantSeqRef: seqRef(3),
		},
		{
			name:    "zero seq",
			frame:   `{"request_type":"request_match","seq":0,"payload":{}}`,
			wantErr: true,
		},
		{
			name:    "negative seq",
			frame:   `{"request_type":"request_match","seq":-4,"payload":{}}`,
			wantErr: true,
		},
		{
			name:    "payload not an object",
			frame:   `{"request_type":"request_match","seq":7,"payload":[1,2]}`,
			wantErr: true, wantSeqRef: seqRef(7),
		},
		{
			name:    "extra top-level field",
			frame:   `{"request_type":"request_match","seq":2,"payload":{},"extra":true}`,
			wantErr: true, wantSeqRef: seqRef(2),
		},
		{
			name:    "not json",
			frame:   `hello there`,
			wantErr: true,
		},
		{
			name:    "seq recoverable from malformed frame",
			frame:   `{"request_type":17,"seq":9,"payload":{}}`,
			wantErr: true, wantSeqRef: seqRef(9),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, schemaErr := Decode([]byte(tt.frame))
			if !tt.wantErr {
				require.Nil(t, schemaErr)
				require.NotNil(t, env)
				return
			}
			require.NotNil(t, schemaErr)
			assert.Nil(t, env)
			if tt.wantSeqRef != nil {
				require.NotNil(t, schemaErr.ResponseTo)
				assert.Equal(t, *tt.wantSeqRef, *schemaErr.ResponseTo)
			}
		})
	}
}

func TestDecodePayload_PerVerbSchemas(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr bool
	}{
		{
			name:  "authenticate ok",
			frame: `{"request_type":"authenticate","seq":1,"payload":{"access_token":"tok"}}`,
		},
		{
			name:    "authenticate missing token",
			frame:   `{"request_type":"authenticate","seq":1,"payload":{}}`,
			wantErr: true,
		},
		{
			name:    "authenticate token too long",
			frame:   fmt.Sprintf(`{"request_type":"authenticate","seq":1,"payload":{"access_token":%q}}`, strings.Repeat("x", 101)),
			wantErr: true,
		},
		{
			name:  "send_message ok",
			frame: `{"request_type":"send_message","seq":5,"payload":{"text":"hi"}}`,
		},
		{
			name:    "send_message unknown payload field",
			frame:   `{"request_type":"send_message","seq":5,"payload":{"text":"hi","color":"red"}}`,
			wantErr: true,
		},
		{
			name:  "request_match empty payload",
			frame: `{"request_type":"request_match","seq":2,"payload":{}}`,
		},
		{
			name:  "receive_match ok",
			frame: `{"request_type":"receive_match","seq":2,"payload":{"conversation_id":4,"attendees":{"1":"a","2":"b"}}}`,
		},
		{
			name:    "receive_match empty attendees",
			frame:   `{"request_type":"receive_match","seq":2,"payload":{"conversation_id":4,"attendees":{}}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, schemaErr := Decode([]byte(tt.frame))
			require.Nil(t, schemaErr)

			payload, schemaErr := env.DecodePayload()
			if tt.wantErr {
				require.NotNil(t, schemaErr)
				require.NotNil(t, schemaErr.ResponseTo)
				assert.Equal(t, env.Seq, *schemaErr.ResponseTo)
				return
			}
			require.Nil(t, schemaErr)
			assert.NotNil(t, payload)
		})
	}
}

func TestDecodePayload_OverlongText(t *testing.T) {
	frame := fmt.Sprintf(`{"request_type":"send_message","seq":1,"payload":{"text":%q}}`, strings.Repeat("a", 501))

	env, schemaErr := Decode([]byte(frame))
	require.Nil(t, schemaErr)

	_, schemaErr = env.DecodePayload()
	require.NotNil(t, schemaErr)
	require.NotNil(t, schemaErr.ResponseTo)
	assert.Equal(t, int64(1), *schemaErr.ResponseTo)
}

// Every frame Encode accepts must itself be judged well-formed when parsed
// back through the inbound validation path.
func TestEncode_RoundTrip(t *testing.T) {
	seven := int64(7)
	frames := []struct {
		requestType RequestType
		payload     any
	}{
		{TypeError, ErrorPayload{ErrorCode: models.CodeOK, ResponseTo: &seven}},
		{TypeError, ErrorPayload{ErrorCode: models.CodeSchemaError, ErrorMessage: "bad frame"}},
		{TypeReceiveMessage, ReceiveMessagePayload{
			ConversationID: 2, AuthorID: 1, AuthorName: "alice", Text: "hi", CreatedAt: 1700000000,
		}},
		{TypeReceiveMatch, ReceiveMatchPayload{
			ConversationID: 2, Attendees: map[string]string{"1": "alice", "2": "bob"},
		}},
		{TypeDisconnect, DisconnectPayload{UserID: 4}},
	}

	for i, f := range frames {
		data, err := Encode(f.requestType, int64(i+1), f.payload)
		require.NoError(t, err, "frame %d", i)

		env, schemaErr := Decode(data)
		require.Nil(t, schemaErr, "frame %d", i)
		assert.Equal(t, f.requestType, env.RequestType)
		assert.Equal(t, int64(i+1), env.Seq)

		_, schemaErr = env.DecodePayload()
		require.Nil(t, schemaErr, "frame %d", i)
	}
}

func TestEncode_RejectsInvalidOutbound(t *testing.T) {
	// Overlong error message violates the outbound schema.
	_, err := Encode(TypeError, 1, ErrorPayload{
		ErrorCode:    models.CodeUnknownError,
		ErrorMessage: strings.Repeat("e", 501),
	})
	require.Error(t, err)

	// Zero seq never leaves the process.
	_, err = Encode(TypeDisconnect, 0, DisconnectPayload{UserID: 1})
	require.Error(t, err)
}

func TestErrorPayload_OmitsEmptyResponseTo(t *testing.T) {
	data, err := Encode(TypeError, 1, ErrorPayload{ErrorCode: models.CodeSchemaError, ErrorMessage: "x"})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["payload"], &payload))
	_, present := payload["response_to"]
	assert.False(t, present)
}
