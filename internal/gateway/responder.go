package gateway

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chatwire/gateway/internal/event"
	"github.com/chatwire/gateway/internal/ids"
	"github.com/chatwire/gateway/internal/logging"
	"github.com/chatwire/gateway/internal/transport"
)

// Responder publishes correlated response envelopes and audit events. Both
// sends are fire-and-forget from the handler's point of view: a publish
// failure is logged but never fails the request that produced it.
type Responder struct {
	publisher      message.Publisher
	responsesTopic string
	eventsTopic    string
	logger         logging.ServiceLogger
}

// NewResponder builds a responder for the given service name. A nil publisher
// is tolerated: every send becomes a logged no-op, which keeps the gateway
// runnable with the event layer disabled.
func NewResponder(publisher message.Publisher, service string, logger logging.ServiceLogger) *Responder {
	return &Responder{
		publisher:      publisher,
		responsesTopic: event.ResponsesTopic(service),
		eventsTopic:    event.EventsTopic(service),
		logger:         logger,
	}
}

// SendResponse publishes the response envelope, partitioned by its
// correlation id so all responses to one requester stay ordered. The broker
// message carries a fresh time-sortable ULID, distinct from the envelope's
// message_id.
func (r *Responder) SendResponse(resp event.ResponseEnvelope) {
	if r.publisher == nil {
		r.logger.Info("Publisher not connected, dropping response", logging.LogFields{
			"request_id": resp.CorrelationID,
			"operation":  resp.Operation,
		})
		return
	}
	data, err := event.Encode(resp)
	if err != nil {
		r.logger.Error("Failed to encode response", err, logging.LogFields{
			"request_id": resp.CorrelationID,
		})
		return
	}
	msg := message.NewMessage(ids.NewULID(), data)
	msg.Metadata.Set(transport.PartitionKeyMetadata, resp.CorrelationID)
	if err := r.publisher.Publish(r.responsesTopic, msg); err != nil {
		r.logger.Error("Failed to publish response", err, logging.LogFields{
			"request_id": resp.CorrelationID,
			"topic":      r.responsesTopic,
		})
	}
}

// SendAudit publishes the audit event, partitioned by the acting user so one
// user's audit trail stays ordered.
func (r *Responder) SendAudit(ev event.AuditEvent) {
	if r.publisher == nil {
		r.logger.Info("Publisher not connected, dropping audit event", logging.LogFields{
			"event_type": ev.EventType,
		})
		return
	}
	data, err := event.Encode(ev)
	if err != nil {
		r.logger.Error("Failed to encode audit event", err, logging.LogFields{
			"event_type": ev.EventType,
		})
		return
	}
	msg := message.NewMessage(ids.NewULID(), data)
	msg.Metadata.Set(transport.PartitionKeyMetadata, ev.Data.UserID)
	if err := r.publisher.Publish(r.eventsTopic, msg); err != nil {
		r.logger.Error("Failed to publish audit event", err, logging.LogFields{
			"event_type": ev.EventType,
			"topic":      r.eventsTopic,
		})
	}
}
