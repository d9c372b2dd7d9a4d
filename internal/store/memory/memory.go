// Package memory provides an in-process DomainStore used in tests and when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chatwire/gateway/internal/ids"
	"github.com/chatwire/gateway/internal/store"
)

type Store struct {
	mu sync.RWMutex

	conversations map[string]store.Conversation
	messages      map[string][]store.Message // keyed by conversation id
	prompts       map[string]store.Prompt
	documents     map[string]store.Document
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]store.Conversation),
		messages:      make(map[string][]store.Message),
		prompts:       make(map[string]store.Prompt),
		documents:     make(map[string]store.Document),
	}
}

// owned reports whether the conversation exists and belongs to user, filtered
// by org when given. Callers must hold at least the read lock.
func (s *Store) owned(conversationID, user, org string) (store.Conversation, bool) {
	conv, ok := s.conversations[conversationID]
	if !ok || conv.UserID != user {
		return store.Conversation{}, false
	}
	if org != "" && conv.OrgID != org {
		return store.Conversation{}, false
	}
	return conv, true
}

func (s *Store) ListConversations(ctx context.Context, user, org string, offset, limit int) ([]store.Conversation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []store.Conversation
	for _, conv := range s.conversations {
		if conv.UserID != user {
			continue
		}
		if org != "" && conv.OrgID != org {
			continue
		}
		conv.MessageCount = len(s.messages[conv.ID])
		matched = append(matched, conv)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return page(matched, offset, limit), total, nil
}

func (s *Store) CreateConversation(ctx context.Context, user, org, topic string) (*store.Conversation, error) {
	if topic == "" {
		topic = "New Conversation"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := store.Conversation{
		ID:        ids.NewUUID(),
		UserID:    user,
		OrgID:     org,
		Topic:     topic,
		CreatedAt: time.Now().UTC(),
	}
	s.conversations[conv.ID] = conv
	return &conv, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id, user, org string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned(id, user, org); !ok {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID, user, org string, offset, limit int) ([]store.Message, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.owned(conversationID, user, org); !ok {
		return nil, 0, store.ErrNotFound
	}

	msgs := s.messages[conversationID]
	total := len(msgs)
	return page(msgs, offset, limit), total, nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID, user, org, body string, isBot bool, tokens int) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.owned(conversationID, user, org); !ok {
		return nil, store.ErrNotFound
	}

	msg := store.Message{
		ID:             ids.NewUUID(),
		ConversationID: conversationID,
		Body:           body,
		IsBot:          isBot,
		Tokens:         tokens,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return &msg, nil
}

func (s *Store) ListPrompts(ctx context.Context, user string) ([]store.Prompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []store.Prompt
	for _, p := range s.prompts {
		if p.UserID == user {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *Store) CreatePrompt(ctx context.Context, user, title, text string) (*store.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p := store.Prompt{
		ID:        ids.NewUUID(),
		UserID:    user,
		Title:     title,
		Prompt:    text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.prompts[p.ID] = p
	return &p, nil
}

func (s *Store) DeletePrompt(ctx context.Context, id, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prompts[id]
	if !ok || p.UserID != user {
		return store.ErrNotFound
	}
	delete(s.prompts, id)
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, user, org, title string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := store.Document{
		ID:        ids.NewUUID(),
		UserID:    user,
		OrgID:     org,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	s.documents[doc.ID] = doc
	return &doc, nil
}

func (s *Store) SetConversationTopic(ctx context.Context, conversationID, user, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(conversationID, user, "")
	if !ok {
		return store.ErrNotFound
	}
	conv.Topic = topic
	s.conversations[conversationID] = conv
	return nil
}

func (s *Store) GenerateTitle(ctx context.Context, conversationID, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.owned(conversationID, user, "")
	if !ok {
		return "", store.ErrNotFound
	}

	first := ""
	for _, msg := range s.messages[conversationID] {
		if !msg.IsBot {
			first = msg.Body
			break
		}
	}
	title := store.DeriveTitle(first)
	conv.Topic = title
	s.conversations[conversationID] = conv
	return title, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
