package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chatwire/gateway/internal/completion"
	"github.com/chatwire/gateway/internal/event"
	"github.com/chatwire/gateway/internal/logging"
	"github.com/chatwire/gateway/internal/store"
)

const (
	defaultConversationPageSize = 20
	defaultMessagePageSize      = 50
)

// requestPayload is the shape every decoded request pointer satisfies.
type requestPayload[T any] interface {
	*T
	Validate() error
	User() *event.UserContext
}

// audit pairs an event type with its partially filled data; the handler
// wrapper stamps the shared fields before publishing.
type audit struct {
	eventType event.AuditEventType
	data      event.AuditData
}

// handlerFor wraps one operation into a watermill handler. The wrapper owns
// the shared pipeline: decode, validate, bound concurrency through the worker
// pool, publish exactly one correlated response, and emit the audit event.
// Every path acks the inbound message; responses travel out-of-band, so a
// domain failure must not trigger redelivery.
func handlerFor[T any, P requestPayload[T]](s *Service, tag event.OperationTag, run func(ctx context.Context, req P) (any, *audit, error)) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		env, err := event.Decode(msg.Payload)
		if err != nil {
			s.logger.Error("Dropping malformed envelope", err, logging.LogFields{
				"message_uuid": msg.UUID,
			})
			return nil
		}
		if env.Operation != tag {
			s.logger.Error("Dropping envelope with mismatched operation", nil, logging.LogFields{
				"message_uuid": msg.UUID,
				"operation":    env.Operation,
				"expected":     tag,
			})
			return nil
		}

		log := s.logger.With(logging.LogFields{
			"request_id": env.CorrelationID,
			"operation":  tag,
		})

		req, err := event.DecodePayload[T](env)
		if err != nil {
			log.Error("Rejecting undecodable payload", err, nil)
			s.responder.SendResponse(event.NewResponse(
				env.CorrelationID, tag.Response(), event.StatusError, nil,
				"invalid payload: "+err.Error()))
			return nil
		}
		preq := P(req)
		if err := preq.Validate(); err != nil {
			log.Info("Rejecting invalid request", logging.LogFields{"reason": err.Error()})
			s.responder.SendResponse(event.NewResponse(
				env.CorrelationID, tag.Response(), event.StatusError, nil, err.Error()))
			return nil
		}
		user := preq.User()

		ctx := msg.Context()
		if err := s.workers.Acquire(ctx, 1); err != nil {
			log.Info("Dropping request during shutdown", nil)
			return nil
		}
		defer s.workers.Release(1)

		start := time.Now()
		payload, aud, err := run(ctx, preq)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			errMsg := errorMessage(err)
			log.Error("Operation failed", err, logging.LogFields{"elapsed_ms": elapsed})
			s.responder.SendResponse(event.NewResponse(
				env.CorrelationID, tag.Response(), event.StatusError, nil, errMsg))
			s.responder.SendAudit(event.NewAuditEvent(event.AuditErrorOccurred, event.AuditData{
				UserID:         user.Email,
				OrgID:          user.ActiveOrgID,
				Operation:      string(tag),
				Status:         string(event.StatusError),
				ResponseTimeMS: elapsed,
				ErrorMessage:   errMsg,
			}))
			return nil
		}

		log.Info("Operation completed", logging.LogFields{"elapsed_ms": elapsed})
		s.responder.SendResponse(event.NewResponse(
			env.CorrelationID, tag.Response(), event.StatusSuccess, payload, ""))
		if aud != nil {
			aud.data.UserID = user.Email
			aud.data.OrgID = user.ActiveOrgID
			aud.data.Operation = string(tag)
			aud.data.Status = string(event.StatusSuccess)
			aud.data.ResponseTimeMS = elapsed
			s.responder.SendAudit(event.NewAuditEvent(aud.eventType, aud.data))
		}
		return nil
	}
}

// errorMessage maps a processing error onto the wire. Ownership failures pass
// through verbatim; everything else is wrapped so internal detail stays
// coarse.
func errorMessage(err error) string {
	if errors.Is(err, store.ErrNotFound) {
		return err.Error()
	}
	return "internal error: " + err.Error()
}

func (s *Service) handleSendMessage(ctx context.Context, req *event.SendMessageRequest) (any, *audit, error) {
	user := req.UserContext
	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := s.store.CreateConversation(ctx, user.Email, user.ActiveOrgID, store.DeriveTitle(req.Message))
		if err != nil {
			return nil, nil, err
		}
		conversationID = conv.ID
	}

	userMsg, err := s.store.AppendMessage(ctx, conversationID, user.Email, user.ActiveOrgID, req.Message, false, 0)
	if err != nil {
		return nil, nil, err
	}

	var history []completion.Turn
	if req.SystemContent != "" {
		history = append(history, completion.Turn{Role: "system", Content: req.SystemContent})
	}
	result, err := s.engine.Generate(ctx, completion.Request{
		Prompt:      req.Message,
		History:     history,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	botMsg, err := s.store.AppendMessage(ctx, conversationID, user.Email, user.ActiveOrgID, result.Text, true, result.Tokens)
	if err != nil {
		return nil, nil, err
	}

	model := req.Model
	if model == "" {
		model = s.cfg.CompletionModel
	}
	resp := event.SendMessageResponse{
		MessageID:      botMsg.ID,
		ConversationID: conversationID,
		UserMessageID:  userMsg.ID,
		Response:       result.Text,
		TokensUsed:     result.Tokens,
		Model:          model,
	}
	return resp, &audit{
		eventType: event.AuditMessageSent,
		data: event.AuditData{
			ConversationID: conversationID,
			MessageID:      botMsg.ID,
			Model:          model,
			TokensUsed:     result.Tokens,
		},
	}, nil
}

func (s *Service) handleGetConversations(ctx context.Context, req *event.GetConversationsRequest) (any, *audit, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultConversationPageSize
	}
	conversations, total, err := s.store.ListConversations(ctx, req.UserContext.Email, req.UserContext.ActiveOrgID, req.Offset, limit)
	if err != nil {
		return nil, nil, err
	}
	out := make([]event.ConversationData, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, event.ConversationData{
			ID:           c.ID,
			Topic:        c.Topic,
			CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
			MessageCount: c.MessageCount,
		})
	}
	return event.GetConversationsResponse{
		Conversations: out,
		TotalCount:    total,
		HasMore:       req.Offset+len(out) < total,
	}, nil, nil
}

func (s *Service) handleCreateConversation(ctx context.Context, req *event.CreateConversationRequest) (any, *audit, error) {
	topic := req.Topic
	if topic == "" {
		topic = store.DeriveTitle("")
	}
	conv, err := s.store.CreateConversation(ctx, req.UserContext.Email, req.UserContext.ActiveOrgID, topic)
	if err != nil {
		return nil, nil, err
	}
	resp := event.CreateConversationResponse{
		ID:        conv.ID,
		Topic:     conv.Topic,
		CreatedAt: conv.CreatedAt.UTC().Format(time.RFC3339),
	}
	return resp, &audit{
		eventType: event.AuditConversationCreated,
		data:      event.AuditData{ConversationID: conv.ID},
	}, nil
}

func (s *Service) handleDeleteConversation(ctx context.Context, req *event.DeleteConversationRequest) (any, *audit, error) {
	if err := s.store.DeleteConversation(ctx, req.ConversationID, req.UserContext.Email, req.UserContext.ActiveOrgID); err != nil {
		return nil, nil, err
	}
	return event.DeleteConversationResponse{Deleted: true}, &audit{
		eventType: event.AuditConversationDeleted,
		data:      event.AuditData{ConversationID: req.ConversationID},
	}, nil
}

func (s *Service) handleGetMessages(ctx context.Context, req *event.GetMessagesRequest) (any, *audit, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultMessagePageSize
	}
	messages, total, err := s.store.ListMessages(ctx, req.ConversationID, req.UserContext.Email, req.UserContext.ActiveOrgID, req.Offset, limit)
	if err != nil {
		return nil, nil, err
	}
	out := make([]event.MessageData, 0, len(messages))
	for _, m := range messages {
		out = append(out, event.MessageData{
			ID:          m.ID,
			Message:     m.Body,
			IsBot:       m.IsBot,
			Tokens:      m.Tokens,
			MessageType: m.MessageType,
			CreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return event.GetMessagesResponse{
		Messages:       out,
		ConversationID: req.ConversationID,
		TotalCount:     total,
	}, nil, nil
}

func (s *Service) handleGetPrompts(ctx context.Context, req *event.GetPromptsRequest) (any, *audit, error) {
	prompts, err := s.store.ListPrompts(ctx, req.UserContext.Email)
	if err != nil {
		return nil, nil, err
	}
	out := make([]event.PromptData, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, event.PromptData{
			ID:        p.ID,
			Title:     p.Title,
			Prompt:    p.Prompt,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return event.GetPromptsResponse{Prompts: out}, nil, nil
}

func (s *Service) handleCreatePrompt(ctx context.Context, req *event.CreatePromptRequest) (any, *audit, error) {
	prompt, err := s.store.CreatePrompt(ctx, req.UserContext.Email, req.Title, req.Prompt)
	if err != nil {
		return nil, nil, err
	}
	resp := event.CreatePromptResponse{
		ID:        prompt.ID,
		Title:     prompt.Title,
		Prompt:    prompt.Prompt,
		CreatedAt: prompt.CreatedAt.UTC().Format(time.RFC3339),
	}
	return resp, &audit{
		eventType: event.AuditPromptCreated,
		data:      event.AuditData{PromptID: prompt.ID},
	}, nil
}

func (s *Service) handleDeletePrompt(ctx context.Context, req *event.DeletePromptRequest) (any, *audit, error) {
	if err := s.store.DeletePrompt(ctx, req.PromptID, req.UserContext.Email); err != nil {
		return nil, nil, err
	}
	return event.DeletePromptResponse{Deleted: true, PromptID: req.PromptID}, &audit{
		eventType: event.AuditPromptDeleted,
		data:      event.AuditData{PromptID: req.PromptID},
	}, nil
}

func (s *Service) handleUploadDocument(ctx context.Context, req *event.UploadDocumentRequest) (any, *audit, error) {
	doc, err := s.store.CreateDocument(ctx, req.UserContext.Email, req.UserContext.ActiveOrgID, req.Title)
	if err != nil {
		return nil, nil, err
	}
	resp := event.UploadDocumentResponse{
		ID:        doc.ID,
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
	}
	return resp, &audit{
		eventType: event.AuditDocumentUploaded,
		data:      event.AuditData{DocumentID: doc.ID},
	}, nil
}

const defaultTitleInstruction = "Generate a short title (at most six words) for this conversation."

func (s *Service) handleGenerateTitle(ctx context.Context, req *event.GenerateTitleRequest) (any, *audit, error) {
	title, err := s.engineTitle(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if title == "" {
		// Deterministic fallback from the first user message.
		title, err = s.store.GenerateTitle(ctx, req.ConversationID, req.UserContext.Email)
		if err != nil {
			return nil, nil, err
		}
	}
	return event.GenerateTitleResponse{
		Title:          title,
		ConversationID: req.ConversationID,
	}, &audit{
		eventType: event.AuditTitleGenerated,
		data:      event.AuditData{ConversationID: req.ConversationID},
	}, nil
}

// engineTitle asks the completion endpoint for a title. Returns "" when no
// endpoint is configured, the conversation is empty, or the engine fails;
// ownership failures propagate.
func (s *Service) engineTitle(ctx context.Context, req *event.GenerateTitleRequest) (string, error) {
	if s.cfg.CompletionURL == "" {
		return "", nil
	}
	user := req.UserContext
	messages, _, err := s.store.ListMessages(ctx, req.ConversationID, user.Email, user.ActiveOrgID, 0, 1)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		return "", nil
	}
	instruction := req.Prompt
	if instruction == "" {
		instruction = defaultTitleInstruction
	}
	result, err := s.engine.Generate(ctx, completion.Request{
		Prompt:  messages[0].Body,
		History: []completion.Turn{{Role: "system", Content: instruction}},
	})
	if err != nil {
		s.logger.Error("Title generation failed, falling back", err, logging.LogFields{
			"conversation_id": req.ConversationID,
		})
		return "", nil
	}
	title := strings.TrimSpace(result.Text)
	if title == "" {
		return "", nil
	}
	if err := s.store.SetConversationTopic(ctx, req.ConversationID, user.Email, title); err != nil {
		return "", err
	}
	return title, nil
}

// operationHandlers binds every supported operation to its handler.
func (s *Service) operationHandlers() map[event.OperationTag]message.NoPublishHandlerFunc {
	return map[event.OperationTag]message.NoPublishHandlerFunc{
		event.OpSendMessage:        handlerFor(s, event.OpSendMessage, s.handleSendMessage),
		event.OpGetConversations:   handlerFor(s, event.OpGetConversations, s.handleGetConversations),
		event.OpCreateConversation: handlerFor(s, event.OpCreateConversation, s.handleCreateConversation),
		event.OpDeleteConversation: handlerFor(s, event.OpDeleteConversation, s.handleDeleteConversation),
		event.OpGetMessages:        handlerFor(s, event.OpGetMessages, s.handleGetMessages),
		event.OpGetPrompts:         handlerFor(s, event.OpGetPrompts, s.handleGetPrompts),
		event.OpCreatePrompt:       handlerFor(s, event.OpCreatePrompt, s.handleCreatePrompt),
		event.OpDeletePrompt:       handlerFor(s, event.OpDeletePrompt, s.handleDeletePrompt),
		event.OpUploadDocument:     handlerFor(s, event.OpUploadDocument, s.handleUploadDocument),
		event.OpGenerateTitle:      handlerFor(s, event.OpGenerateTitle, s.handleGenerateTitle),
	}
}
