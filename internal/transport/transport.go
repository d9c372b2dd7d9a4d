// Package transport establishes the gateway's broker connections: one shared
// outbound publisher and one topic-scoped subscriber per registered topic,
// both behind a factory so tests can run against the in-process channel
// transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chatwire/gateway/internal/config"
)

// ErrUnavailable marks connection establishment that exhausted its retry
// budget. Fatal for the publisher at startup; per-topic for subscribers.
var ErrUnavailable = errors.New("transport unavailable")

// PartitionKeyMetadata is the message metadata key read by the Kafka
// partitioning marshaler to route a message to a partition.
const PartitionKeyMetadata = "partition_key"

// Connector establishes broker connections with bounded retries.
type Connector interface {
	// ConnectPublisher establishes the single outbound publisher connection.
	ConnectPublisher(ctx context.Context) (message.Publisher, error)
	// ConnectSubscriber establishes a subscriber scoped to one topic. All
	// subscribers of a service share one consumer group.
	ConnectSubscriber(ctx context.Context, topic string) (message.Subscriber, error)
}

// Options carries the retry tuning shared by every connector.
type Options struct {
	PublisherAttempts  int
	PublisherDelay     time.Duration
	SubscriberAttempts int
	SubscriberDelay    time.Duration
}

// OptionsFromConfig maps gateway configuration onto connector retry tuning.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PublisherAttempts:  cfg.PublisherConnectAttempts,
		PublisherDelay:     cfg.PublisherConnectDelay,
		SubscriberAttempts: cfg.SubscriberConnectAttempts,
		SubscriberDelay:    cfg.SubscriberConnectDelay,
	}
}

// New builds the connector selected by the configuration.
func New(cfg *config.Config, logger watermill.LoggerAdapter) (Connector, error) {
	switch strings.ToLower(cfg.Transport) {
	case "kafka":
		return NewKafkaConnector(cfg.KafkaBrokers, cfg.ConsumerGroup, OptionsFromConfig(cfg), logger), nil
	case "channel":
		return NewChannelConnector(logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// retryConnect runs connect up to attempts times, sleeping delay between
// failures. The final failure is wrapped with ErrUnavailable.
func retryConnect[T any](ctx context.Context, attempts int, delay time.Duration, logger watermill.LoggerAdapter, what string, connect func() (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := connect()
		if err == nil {
			logger.Info("Connected", watermill.LogFields{"target": what, "attempt": attempt})
			return conn, nil
		}
		lastErr = err
		logger.Error("Connection attempt failed", err, watermill.LogFields{
			"target":   what,
			"attempt":  attempt,
			"attempts": attempts,
		})
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, what, ctx.Err())
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("%w: %s after %d attempts: %v", ErrUnavailable, what, attempts, lastErr)
}
