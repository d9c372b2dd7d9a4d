// Package postgres backs the Domain Store with a pgx connection pool. The
// schema is embedded and applied on connect, so a fresh database is usable
// without an external migration step.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwire/gateway/internal/ids"
	"github.com/chatwire/gateway/internal/store"
)

//go:embed schema.sql
var schema string

const connectTimeout = 5 * time.Second

// Store implements store.DomainStore on PostgreSQL. Ownership checks happen
// in SQL: every statement filters by the caller's user id (and org when one
// is given), so a mismatch surfaces as zero rows, never as leaked data.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the pool, verifies the database is reachable, and applies the
// embedded schema.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// limitArg renders a page limit for LIMIT $n. Non-positive limits bind as
// NULL, which Postgres treats as no limit, matching the memory store's
// unbounded behavior.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (s *Store) ListConversations(ctx context.Context, user, org string, offset, limit int) ([]store.Conversation, int, error) {
	args := []any{user}
	filter := ""
	if org != "" {
		args = append(args, org)
		filter = " AND c.org_id = $2"
	}

	var total int
	countQuery := "SELECT count(*) FROM conversations c WHERE c.user_id = $1" + filter
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	args = append(args, offset, limitArg(limit))
	query := `SELECT c.id, c.user_id, c.org_id, c.topic, c.created_at,
        (SELECT count(*) FROM messages m WHERE m.conversation_id = c.id)
        FROM conversations c WHERE c.user_id = $1` + filter +
		fmt.Sprintf(" ORDER BY c.created_at DESC OFFSET $%d LIMIT $%d", len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []store.Conversation
	for rows.Next() {
		var c store.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.OrgID, &c.Topic, &c.CreatedAt, &c.MessageCount); err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, user, org, topic string) (*store.Conversation, error) {
	c := store.Conversation{
		ID:     ids.NewUUID(),
		UserID: user,
		OrgID:  org,
		Topic:  topic,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, user_id, org_id, topic)
         VALUES ($1, $2, $3, $4) RETURNING created_at`,
		c.ID, c.UserID, c.OrgID, c.Topic,
	).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id, user, org string) error {
	args := []any{id, user}
	filter := ""
	if org != "" {
		args = append(args, org)
		filter = " AND org_id = $3"
	}
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM conversations WHERE id = $1 AND user_id = $2"+filter, args...)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// owns reports whether the conversation exists and belongs to the caller.
func (s *Store) owns(ctx context.Context, conversationID, user, org string) error {
	args := []any{conversationID, user}
	filter := ""
	if org != "" {
		args = append(args, org)
		filter = " AND org_id = $3"
	}
	var one int
	err := s.pool.QueryRow(ctx,
		"SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2"+filter, args...,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check conversation ownership: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID, user, org string, offset, limit int) ([]store.Message, int, error) {
	if err := s.owns(ctx, conversationID, user, org); err != nil {
		return nil, 0, err
	}

	var total int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM messages WHERE conversation_id = $1", conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, body, is_bot, tokens, message_type, created_at
         FROM messages WHERE conversation_id = $1
         ORDER BY created_at OFFSET $2 LIMIT $3`,
		conversationID, offset, limitArg(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Body, &m.IsBot, &m.Tokens, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *Store) AppendMessage(ctx context.Context, conversationID, user, org, body string, isBot bool, tokens int) (*store.Message, error) {
	if err := s.owns(ctx, conversationID, user, org); err != nil {
		return nil, err
	}
	m := store.Message{
		ID:             ids.NewUUID(),
		ConversationID: conversationID,
		Body:           body,
		IsBot:          isBot,
		Tokens:         tokens,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (id, conversation_id, body, is_bot, tokens)
         VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		m.ID, m.ConversationID, m.Body, m.IsBot, m.Tokens,
	).Scan(&m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &m, nil
}

func (s *Store) ListPrompts(ctx context.Context, user string) ([]store.Prompt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, prompt, created_at, updated_at
         FROM prompts WHERE user_id = $1 ORDER BY created_at DESC`, user)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []store.Prompt
	for rows.Next() {
		var p store.Prompt
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Prompt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreatePrompt(ctx context.Context, user, title, text string) (*store.Prompt, error) {
	p := store.Prompt{
		ID:     ids.NewUUID(),
		UserID: user,
		Title:  title,
		Prompt: text,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO prompts (id, user_id, title, prompt)
         VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Title, p.Prompt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	return &p, nil
}

func (s *Store) DeletePrompt(ctx context.Context, id, user string) error {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM prompts WHERE id = $1 AND user_id = $2", id, user)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, user, org, title string) (*store.Document, error) {
	d := store.Document{
		ID:     ids.NewUUID(),
		UserID: user,
		OrgID:  org,
		Title:  title,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, user_id, org_id, title)
         VALUES ($1, $2, $3, $4) RETURNING created_at`,
		d.ID, d.UserID, d.OrgID, d.Title,
	).Scan(&d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &d, nil
}

func (s *Store) SetConversationTopic(ctx context.Context, conversationID, user, topic string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE conversations SET topic = $1 WHERE id = $2 AND user_id = $3",
		topic, conversationID, user)
	if err != nil {
		return fmt.Errorf("set conversation topic: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GenerateTitle(ctx context.Context, conversationID, user string) (string, error) {
	if err := s.owns(ctx, conversationID, user, ""); err != nil {
		return "", err
	}
	var first string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM messages
         WHERE conversation_id = $1 AND is_bot = FALSE
         ORDER BY created_at LIMIT 1`, conversationID,
	).Scan(&first)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("load first message: %w", err)
	}

	title := store.DeriveTitle(first)
	if _, err := s.pool.Exec(ctx,
		"UPDATE conversations SET topic = $1 WHERE id = $2", title, conversationID); err != nil {
		return "", fmt.Errorf("persist title: %w", err)
	}
	return title, nil
}
