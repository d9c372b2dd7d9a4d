package event

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	env := Envelope{
		MessageID:     "2f5c0a34-9c1f-4a77-91af-3d1f19c1a001",
		CorrelationID: "2f5c0a34-9c1f-4a77-91af-3d1f19c1a002",
		Operation:     OpCreateConversation,
		Timestamp:     "2026-01-02T03:04:05Z",
		Payload:       []byte(`{"topic":"Test","user_context":{"email":"a@b.com"}}`),
	}

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.MessageID != env.MessageID {
		t.Errorf("MessageID = %q, want %q", decoded.MessageID, env.MessageID)
	}
	if decoded.CorrelationID != env.CorrelationID {
		t.Errorf("CorrelationID = %q, want %q", decoded.CorrelationID, env.CorrelationID)
	}
	if decoded.Operation != OpCreateConversation {
		t.Errorf("Operation = %q, want %q", decoded.Operation, OpCreateConversation)
	}

	payload, err := DecodePayload[CreateConversationRequest](decoded)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.Topic != "Test" {
		t.Errorf("Topic = %q, want Test", payload.Topic)
	}
	if payload.UserContext == nil || payload.UserContext.Email != "a@b.com" {
		t.Errorf("UserContext = %+v, want email a@b.com", payload.UserContext)
	}
}

func TestDecodeStripsByteOrderMark(t *testing.T) {
	raw := `{"message_id":"m1","request_id":"r1","operation":"chat_get_prompts","timestamp":"2026-01-02T03:04:05Z","payload":{}}`
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(raw)...)

	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode with BOM: %v", err)
	}
	if env.Operation != OpGetPrompts {
		t.Errorf("Operation = %q, want %q", env.Operation, OpGetPrompts)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string][]byte{
		"not json":           []byte("not json at all"),
		"empty":              nil,
		"missing message id": []byte(`{"request_id":"r1","operation":"chat_get_prompts"}`),
		"missing request id": []byte(`{"message_id":"m1","operation":"chat_get_prompts"}`),
		"unknown operation":  []byte(`{"message_id":"m1","request_id":"r1","operation":"chat_teleport"}`),
		"response tag":       []byte(`{"message_id":"m1","request_id":"r1","operation":"chat_get_prompts_response"}`),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(data); !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("Decode(%s) error = %v, want ErrMalformedEnvelope", name, err)
			}
		})
	}
}

func TestEncodeStringifiesUnsupportedValues(t *testing.T) {
	payload := map[string]any{
		"fine":   "value",
		"weird":  make(chan int),
		"nested": map[string]any{"also_weird": complex(1, 2)},
	}

	data, err := Encode(payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"fine":"value"`) {
		t.Errorf("encoded payload lost serializable values: %s", data)
	}
}

func TestResponseTagPairing(t *testing.T) {
	for _, op := range Operations() {
		resp := op.Response()
		if resp == op {
			t.Errorf("response tag for %q equals request tag", op)
		}
		if !strings.HasSuffix(string(resp), "_response") {
			t.Errorf("response tag %q missing _response suffix", resp)
		}
		if resp.Known() {
			t.Errorf("response tag %q must not be a registrable request operation", resp)
		}
	}
}

func TestTopicNaming(t *testing.T) {
	if got := OpSendMessage.Topic("chat-service"); got != "chat-service-send-message" {
		t.Errorf("Topic = %q, want chat-service-send-message", got)
	}
	if got := ResponsesTopic("chat-service"); got != "chat-service-responses" {
		t.Errorf("ResponsesTopic = %q", got)
	}
	if got := EventsTopic("chat-service"); got != "chat-service-events" {
		t.Errorf("EventsTopic = %q", got)
	}
}

func TestNewResponseStampsFreshIdentity(t *testing.T) {
	a := NewResponse("corr-1", OpGetPrompts.Response(), StatusSuccess, GetPromptsResponse{}, "")
	b := NewResponse("corr-1", OpGetPrompts.Response(), StatusSuccess, GetPromptsResponse{}, "")

	if a.MessageID == b.MessageID {
		t.Error("message ids must be unique per envelope")
	}
	if a.CorrelationID != "corr-1" || b.CorrelationID != "corr-1" {
		t.Error("correlation id must carry through unchanged")
	}
}

func TestPayloadValidation(t *testing.T) {
	user := &UserContext{Email: "a@b.com"}

	cases := []struct {
		name    string
		payload interface{ Validate() error }
		wantErr string
	}{
		{"send missing message", &SendMessageRequest{UserContext: user}, "message"},
		{"send missing user", &SendMessageRequest{Message: "hi"}, "user_context.email"},
		{"send ok", &SendMessageRequest{Message: "hi", UserContext: user}, ""},
		{"delete conversation missing id", &DeleteConversationRequest{UserContext: user}, "conversation_id"},
		{"get messages negative limit", &GetMessagesRequest{ConversationID: "c1", Limit: -1, UserContext: user}, "limit"},
		{"create prompt missing text", &CreatePromptRequest{UserContext: user}, "prompt"},
		{"upload missing file", &UploadDocumentRequest{Title: "doc", UserContext: user}, "file"},
		{"generate title ok", &GenerateTitleRequest{ConversationID: "c1", UserContext: user}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.payload.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate error = %v, want ValidationError", err)
			}
			if verr.Field != tc.wantErr {
				t.Errorf("field = %q, want %q", verr.Field, tc.wantErr)
			}
		})
	}
}
