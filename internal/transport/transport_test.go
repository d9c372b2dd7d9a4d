package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/chatwire/gateway/internal/config"
)

func TestNewSelectsConnector(t *testing.T) {
	logger := watermill.NopLogger{}

	cfg := &config.Config{Transport: "channel"}
	if _, err := New(cfg, logger); err != nil {
		t.Fatalf("channel connector: %v", err)
	}

	cfg = &config.Config{Transport: "kafka", KafkaBrokers: []string{"localhost:9092"}, ConsumerGroup: "g"}
	if _, err := New(cfg, logger); err != nil {
		t.Fatalf("kafka connector: %v", err)
	}

	cfg = &config.Config{Transport: "carrier-pigeon"}
	if _, err := New(cfg, logger); err == nil {
		t.Fatal("expected error for unsupported transport")
	}
}

func TestKafkaPublisherRetriesUntilExhaustion(t *testing.T) {
	origPublisher := KafkaPublisherFactory
	defer func() { KafkaPublisherFactory = origPublisher }()

	attempts := 0
	KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		attempts++
		return nil, errors.New("broker down")
	}

	conn := NewKafkaConnector([]string{"localhost:9092"}, "g", Options{
		PublisherAttempts: 3,
		PublisherDelay:    time.Millisecond,
	}, watermill.NopLogger{})

	_, err := conn.ConnectPublisher(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestKafkaPublisherSucceedsAfterTransientFailure(t *testing.T) {
	origPublisher := KafkaPublisherFactory
	defer func() { KafkaPublisherFactory = origPublisher }()

	attempts := 0
	KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("broker warming up")
		}
		return nopPublisher{}, nil
	}

	conn := NewKafkaConnector([]string{"localhost:9092"}, "g", Options{
		PublisherAttempts: 5,
		PublisherDelay:    time.Millisecond,
	}, watermill.NopLogger{})

	pub, err := conn.ConnectPublisher(context.Background())
	if err != nil {
		t.Fatalf("ConnectPublisher: %v", err)
	}
	if pub == nil {
		t.Fatal("publisher is nil")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestKafkaSubscriberRetryBoundIsPerTopic(t *testing.T) {
	origSubscriber := KafkaSubscriberFactory
	defer func() { KafkaSubscriberFactory = origSubscriber }()

	attempts := 0
	KafkaSubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		attempts++
		return nil, errors.New("no partitions")
	}

	conn := NewKafkaConnector([]string{"localhost:9092"}, "g", Options{
		SubscriberAttempts: 5,
		SubscriberDelay:    time.Millisecond,
	}, watermill.NopLogger{})

	_, err := conn.ConnectSubscriber(context.Background(), "chat-service-send-message")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if attempts != 5 {
		t.Errorf("attempts = %d, want 5", attempts)
	}
}

func TestRetryConnectHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	_, err := retryConnect(ctx, 10, time.Minute, watermill.NopLogger{}, "test", func() (int, error) {
		attempts++
		return 0, errors.New("down")
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 before cancelled wait", attempts)
	}
}

func TestChannelConnectorSharesPubSub(t *testing.T) {
	conn := NewChannelConnector(watermill.NopLogger{})
	ctx := context.Background()

	pub, err := conn.ConnectPublisher(ctx)
	if err != nil {
		t.Fatalf("ConnectPublisher: %v", err)
	}
	sub, err := conn.ConnectSubscriber(ctx, "topic-a")
	if err != nil {
		t.Fatalf("ConnectSubscriber: %v", err)
	}

	messages, err := sub.Subscribe(ctx, "topic-a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := pub.Publish("topic-a", message.NewMessage("m1", []byte("hello"))); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if string(msg.Payload) != "hello" {
			t.Errorf("payload = %q", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered through shared pubsub")
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(topic string, messages ...*message.Message) error { return nil }
func (nopPublisher) Close() error                                             { return nil }
