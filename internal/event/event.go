// Package event defines the wire contract of the chat event gateway: the
// request envelope, the correlated response envelope, the audit event stream,
// and the closed set of supported operations with their typed payloads.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatwire/gateway/internal/ids"
)

// Status reports the outcome of a processed request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// OperationTag identifies a request kind or its corresponding response kind.
// Request and response tags are distinct values sharing one topic pair.
type OperationTag string

const (
	OpSendMessage        OperationTag = "chat_send_message"
	OpGetConversations   OperationTag = "chat_get_conversations"
	OpCreateConversation OperationTag = "chat_create_conversation"
	OpDeleteConversation OperationTag = "chat_delete_conversation"
	OpGetMessages        OperationTag = "chat_get_messages"
	OpGetPrompts         OperationTag = "chat_get_prompts"
	OpCreatePrompt       OperationTag = "chat_create_prompt"
	OpDeletePrompt       OperationTag = "chat_delete_prompt"
	OpUploadDocument     OperationTag = "chat_upload_document"
	OpGenerateTitle      OperationTag = "chat_generate_title"
)

// operationSlugs maps each request tag to its inbound topic slug.
var operationSlugs = map[OperationTag]string{
	OpSendMessage:        "send-message",
	OpGetConversations:   "get-conversations",
	OpCreateConversation: "create-conversation",
	OpDeleteConversation: "delete-conversation",
	OpGetMessages:        "get-messages",
	OpGetPrompts:         "get-prompts",
	OpCreatePrompt:       "create-prompt",
	OpDeletePrompt:       "delete-prompt",
	OpUploadDocument:     "upload-document",
	OpGenerateTitle:      "generate-title",
}

// Operations returns every request tag in registration order.
func Operations() []OperationTag {
	return []OperationTag{
		OpSendMessage,
		OpGetConversations,
		OpCreateConversation,
		OpDeleteConversation,
		OpGetMessages,
		OpGetPrompts,
		OpCreatePrompt,
		OpDeletePrompt,
		OpUploadDocument,
		OpGenerateTitle,
	}
}

// Known reports whether the tag is a supported request operation.
func (op OperationTag) Known() bool {
	_, ok := operationSlugs[op]
	return ok
}

// Response returns the response tag paired with this request tag.
func (op OperationTag) Response() OperationTag {
	return op + "_response"
}

// Topic returns the inbound topic for the operation, scoped to the service
// name, e.g. "chat-service-send-message".
func (op OperationTag) Topic(service string) string {
	slug, ok := operationSlugs[op]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s-%s", service, slug)
}

// ResponsesTopic returns the single outbound topic carrying correlated
// response envelopes.
func ResponsesTopic(service string) string {
	return service + "-responses"
}

// EventsTopic returns the outbound topic carrying the audit event stream.
func EventsTopic(service string) string {
	return service + "-events"
}

// UserContext identifies the caller as resolved by the upstream gateway. It is
// carried inside request payloads and only used to scope Domain Store calls.
type UserContext struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name,omitempty"`
	ActiveOrgID string `json:"active_org_id,omitempty"`
	OrgRole     string `json:"org_role,omitempty"`
	IsOrgOwner  bool   `json:"is_org_owner,omitempty"`
}

// RequestMetadata is attached by the upstream gateway. The event gateway
// tolerates and ignores it.
type RequestMetadata struct {
	SourceIP         string `json:"source_ip,omitempty"`
	UserAgent        string `json:"user_agent,omitempty"`
	GatewayRequestID string `json:"gateway_request_id,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
}

// Envelope is the wire wrapper of one inbound request. Immutable once decoded;
// consumed exactly once.
type Envelope struct {
	MessageID     string          `json:"message_id"`
	CorrelationID string          `json:"request_id"`
	Operation     OperationTag    `json:"operation"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// ResponseEnvelope is the correlated reply to one request. Write-once.
// Invariant: StatusError implies Error is set and Payload is empty;
// StatusSuccess implies Error is empty.
type ResponseEnvelope struct {
	MessageID     string       `json:"message_id"`
	CorrelationID string       `json:"request_id"`
	Operation     OperationTag `json:"operation"`
	Timestamp     string       `json:"timestamp"`
	Status        Status       `json:"status"`
	Payload       any          `json:"payload,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// NewResponse builds a response envelope with a fresh message id and the
// current timestamp. The inbound envelope's message id is never reused.
func NewResponse(correlationID string, op OperationTag, status Status, payload any, errMsg string) ResponseEnvelope {
	return ResponseEnvelope{
		MessageID:     ids.NewUUID(),
		CorrelationID: correlationID,
		Operation:     op,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Status:        status,
		Payload:       payload,
		Error:         errMsg,
	}
}

// AuditEventType enumerates the audit-significant outcomes.
type AuditEventType string

const (
	AuditMessageSent         AuditEventType = "message_sent"
	AuditConversationCreated AuditEventType = "conversation_created"
	AuditConversationDeleted AuditEventType = "conversation_deleted"
	AuditDocumentUploaded    AuditEventType = "document_uploaded"
	AuditPromptCreated       AuditEventType = "prompt_created"
	AuditPromptDeleted       AuditEventType = "prompt_deleted"
	AuditTitleGenerated      AuditEventType = "title_generated"
	AuditErrorOccurred       AuditEventType = "error_occurred"
)

// AuditData carries the correlation-relevant details of one audit event.
type AuditData struct {
	UserID         string `json:"user_id"`
	OrgID          string `json:"org_id,omitempty"`
	Operation      string `json:"operation"`
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	PromptID       string `json:"prompt_id,omitempty"`
	Model          string `json:"model,omitempty"`
	TokensUsed     int    `json:"tokens_used,omitempty"`
	ResponseTimeMS int64  `json:"response_time_ms,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// AuditEvent is a fire-and-forget record of an operation's outcome. Losing one
// must never fail the originating request.
type AuditEvent struct {
	EventType AuditEventType `json:"event_type"`
	Timestamp float64        `json:"timestamp"`
	Data      AuditData      `json:"data"`
}

// NewAuditEvent stamps an audit event with the current unix-epoch timestamp.
func NewAuditEvent(eventType AuditEventType, data AuditData) AuditEvent {
	return AuditEvent{
		EventType: eventType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Data:      data,
	}
}
