package event

// Typed request payloads, one per operation. Each validates its own schema at
// the gateway boundary before any Domain Store call is made.

// ValidationError reports a missing or invalid payload field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "invalid field " + e.Field + ": " + e.Reason
	}
	return "missing required field " + e.Field
}

func missing(field string) error {
	return &ValidationError{Field: field}
}

func (u *UserContext) validate() error {
	if u == nil || u.Email == "" {
		return missing("user_context.email")
	}
	return nil
}

// SendMessageRequest asks for a chat completion within a conversation.
type SendMessageRequest struct {
	Message         string           `json:"message"`
	ConversationID  string           `json:"conversation_id,omitempty"`
	Model           string           `json:"model,omitempty"`
	MaxTokens       int              `json:"max_tokens,omitempty"`
	Temperature     float64          `json:"temperature,omitempty"`
	SystemContent   string           `json:"system_content,omitempty"`
	FrugalMode      bool             `json:"frugal_mode,omitempty"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *SendMessageRequest) Validate() error {
	if p.Message == "" {
		return missing("message")
	}
	return p.UserContext.validate()
}

// SendMessageResponse is the success payload for send-message.
type SendMessageResponse struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserMessageID  string `json:"user_message_id,omitempty"`
	Response       string `json:"response"`
	TokensUsed     int    `json:"tokens_used"`
	Model          string `json:"model"`
	Streaming      bool   `json:"streaming"`
}

// GetConversationsRequest lists the caller's conversations.
type GetConversationsRequest struct {
	Limit           int              `json:"limit"`
	Offset          int              `json:"offset"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *GetConversationsRequest) Validate() error {
	if p.Limit < 0 {
		return &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if p.Offset < 0 {
		return &ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	return p.UserContext.validate()
}

// ConversationData is one conversation in a listing.
type ConversationData struct {
	ID           string `json:"id"`
	Topic        string `json:"topic"`
	CreatedAt    string `json:"created_at"`
	MessageCount int    `json:"message_count"`
}

// GetConversationsResponse is the success payload for get-conversations.
type GetConversationsResponse struct {
	Conversations []ConversationData `json:"conversations"`
	TotalCount    int                `json:"total_count"`
	HasMore       bool               `json:"has_more"`
}

// CreateConversationRequest opens a new conversation.
type CreateConversationRequest struct {
	Topic           string           `json:"topic,omitempty"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *CreateConversationRequest) Validate() error {
	return p.UserContext.validate()
}

// CreateConversationResponse is the success payload for create-conversation.
type CreateConversationResponse struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	CreatedAt string `json:"created_at"`
}

// DeleteConversationRequest removes a conversation owned by the caller.
type DeleteConversationRequest struct {
	ConversationID  string           `json:"conversation_id"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *DeleteConversationRequest) Validate() error {
	if p.ConversationID == "" {
		return missing("conversation_id")
	}
	return p.UserContext.validate()
}

// DeleteConversationResponse is the success payload for delete-conversation.
type DeleteConversationResponse struct {
	Deleted bool `json:"deleted"`
}

// GetMessagesRequest lists a conversation's messages.
type GetMessagesRequest struct {
	ConversationID  string           `json:"conversation_id"`
	Limit           int              `json:"limit"`
	Offset          int              `json:"offset"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *GetMessagesRequest) Validate() error {
	if p.ConversationID == "" {
		return missing("conversation_id")
	}
	if p.Limit < 0 {
		return &ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if p.Offset < 0 {
		return &ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	return p.UserContext.validate()
}

// MessageData is one message in a listing.
type MessageData struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	IsBot       bool   `json:"is_bot"`
	Tokens      int    `json:"tokens"`
	MessageType int    `json:"message_type"`
	CreatedAt   string `json:"created_at"`
}

// GetMessagesResponse is the success payload for get-messages.
type GetMessagesResponse struct {
	Messages       []MessageData `json:"messages"`
	ConversationID string        `json:"conversation_id"`
	TotalCount     int           `json:"total_count"`
}

// GetPromptsRequest lists the caller's saved prompts.
type GetPromptsRequest struct {
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *GetPromptsRequest) Validate() error {
	return p.UserContext.validate()
}

// PromptData is one saved prompt in a listing.
type PromptData struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Prompt    string `json:"prompt"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// GetPromptsResponse is the success payload for get-prompts.
type GetPromptsResponse struct {
	Prompts []PromptData `json:"prompts"`
}

// CreatePromptRequest saves a reusable prompt for the caller.
type CreatePromptRequest struct {
	Title           string           `json:"title,omitempty"`
	Prompt          string           `json:"prompt"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *CreatePromptRequest) Validate() error {
	if p.Prompt == "" {
		return missing("prompt")
	}
	return p.UserContext.validate()
}

// CreatePromptResponse is the success payload for create-prompt.
type CreatePromptResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Prompt    string `json:"prompt"`
	CreatedAt string `json:"created_at"`
}

// DeletePromptRequest removes a saved prompt owned by the caller.
type DeletePromptRequest struct {
	PromptID        string           `json:"prompt_id"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *DeletePromptRequest) Validate() error {
	if p.PromptID == "" {
		return missing("prompt_id")
	}
	return p.UserContext.validate()
}

// DeletePromptResponse is the success payload for delete-prompt.
type DeletePromptResponse struct {
	Deleted  bool   `json:"deleted"`
	PromptID string `json:"prompt_id"`
}

// UploadDocumentRequest registers an embedding document for the caller.
type UploadDocumentRequest struct {
	Title           string           `json:"title"`
	File            string           `json:"file"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *UploadDocumentRequest) Validate() error {
	if p.Title == "" {
		return missing("title")
	}
	if p.File == "" {
		return missing("file")
	}
	return p.UserContext.validate()
}

// UploadDocumentResponse is the success payload for upload-document.
type UploadDocumentResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// GenerateTitleRequest asks for a generated conversation title.
type GenerateTitleRequest struct {
	ConversationID  string           `json:"conversation_id"`
	Prompt          string           `json:"prompt,omitempty"`
	UserContext     *UserContext     `json:"user_context"`
	RequestMetadata *RequestMetadata `json:"request_metadata,omitempty"`
}

func (p *GenerateTitleRequest) Validate() error {
	if p.ConversationID == "" {
		return missing("conversation_id")
	}
	return p.UserContext.validate()
}

// GenerateTitleResponse is the success payload for generate-title.
type GenerateTitleResponse struct {
	Title          string `json:"title"`
	ConversationID string `json:"conversation_id"`
}

// User exposes the caller identity uniformly across request payloads.
func (p *SendMessageRequest) User() *UserContext        { return p.UserContext }
func (p *GetConversationsRequest) User() *UserContext   { return p.UserContext }
func (p *CreateConversationRequest) User() *UserContext { return p.UserContext }
func (p *DeleteConversationRequest) User() *UserContext { return p.UserContext }
func (p *GetMessagesRequest) User() *UserContext        { return p.UserContext }
func (p *GetPromptsRequest) User() *UserContext         { return p.UserContext }
func (p *CreatePromptRequest) User() *UserContext       { return p.UserContext }
func (p *DeletePromptRequest) User() *UserContext       { return p.UserContext }
func (p *UploadDocumentRequest) User() *UserContext     { return p.UserContext }
func (p *GenerateTitleRequest) User() *UserContext      { return p.UserContext }
