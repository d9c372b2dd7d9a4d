// Package store defines the Domain Store consumed by the gateway handlers:
// conversations, messages, prompts, and embedding documents, always scoped to
// the owning caller identity.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a lookup that failed the existence or ownership check.
// Handlers convert it to an error response; it is never retried.
var ErrNotFound = errors.New("not found or access denied")

// Conversation is one chat dialog owned by a user.
type Conversation struct {
	ID           string
	UserID       string
	OrgID        string
	Topic        string
	CreatedAt    time.Time
	MessageCount int
}

// Message is one utterance inside a conversation.
type Message struct {
	ID             string
	ConversationID string
	Body           string
	IsBot          bool
	Tokens         int
	MessageType    int
	CreatedAt      time.Time
}

// Prompt is a reusable prompt snippet owned by a user.
type Prompt struct {
	ID        string
	UserID    string
	Title     string
	Prompt    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document is an uploaded embedding document owned by a user.
type Document struct {
	ID        string
	UserID    string
	OrgID     string
	Title     string
	CreatedAt time.Time
}

// DomainStore owns the persisted chat entities. All calls are synchronous and
// may block on the backing database; the gateway runs them through its worker
// pool. Implementations enforce the ownership rule: a caller only observes or
// mutates entities whose owning identity matches, additionally filtered by org
// when one is given.
type DomainStore interface {
	// ListConversations returns a page of the caller's conversations, newest
	// first, with the total count across all pages. A non-positive limit
	// means no limit; this holds for every paged listing.
	ListConversations(ctx context.Context, user, org string, offset, limit int) ([]Conversation, int, error)
	// CreateConversation opens a conversation. Not idempotent: repeated calls
	// create distinct conversations.
	CreateConversation(ctx context.Context, user, org, topic string) (*Conversation, error)
	// DeleteConversation removes the conversation and its messages. Returns
	// ErrNotFound when it does not exist or is not owned by the caller.
	DeleteConversation(ctx context.Context, id, user, org string) error
	// ListMessages returns a page of the conversation's messages in creation
	// order with the total count. Returns ErrNotFound when the conversation is
	// not owned by the caller.
	ListMessages(ctx context.Context, conversationID, user, org string, offset, limit int) ([]Message, int, error)
	// AppendMessage adds a message to the conversation, checking ownership.
	AppendMessage(ctx context.Context, conversationID, user, org, body string, isBot bool, tokens int) (*Message, error)
	// ListPrompts returns the caller's prompts, newest first.
	ListPrompts(ctx context.Context, user string) ([]Prompt, error)
	// CreatePrompt saves a prompt. Not idempotent.
	CreatePrompt(ctx context.Context, user, title, text string) (*Prompt, error)
	// DeletePrompt removes the prompt. Returns ErrNotFound when it does not
	// exist or is not owned by the caller.
	DeletePrompt(ctx context.Context, id, user string) error
	// CreateDocument registers an uploaded embedding document. Not idempotent.
	CreateDocument(ctx context.Context, user, org, title string) (*Document, error)
	// SetConversationTopic overwrites the conversation's topic, checking
	// ownership.
	SetConversationTopic(ctx context.Context, conversationID, user, topic string) error
	// GenerateTitle derives a topic for the conversation, persists it, and
	// returns it. Returns ErrNotFound when the conversation is not owned by
	// the caller.
	GenerateTitle(ctx context.Context, conversationID, user string) (string, error)
}

// DeriveTitle produces the fallback conversation title from the first user
// message when no completion engine is wired in.
func DeriveTitle(firstMessage string) string {
	const maxLen = 48
	if firstMessage == "" {
		return "New Conversation"
	}
	title := firstMessage
	if len(title) > maxLen {
		title = title[:maxLen]
	}
	return title
}
