package transport

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Factory seams so tests can exercise the retry policy without a broker.
var (
	KafkaPublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return kafka.NewPublisher(cfg, logger)
	}
	KafkaSubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return kafka.NewSubscriber(cfg, logger)
	}
)

type kafkaConnector struct {
	brokers       []string
	consumerGroup string
	opts          Options
	logger        watermill.LoggerAdapter
}

// NewKafkaConnector returns a connector for a Kafka-style broker. The
// publisher waits for full-ISR acknowledgment on every write so responses are
// never silently dropped; messages are partitioned by the PartitionKeyMetadata
// header.
func NewKafkaConnector(brokers []string, consumerGroup string, opts Options, logger watermill.LoggerAdapter) Connector {
	return &kafkaConnector{
		brokers:       brokers,
		consumerGroup: consumerGroup,
		opts:          opts,
		logger:        logger,
	}
}

func (c *kafkaConnector) ConnectPublisher(ctx context.Context) (message.Publisher, error) {
	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll

	cfg := kafka.PublisherConfig{
		Brokers:               c.brokers,
		Marshaler:             partitionKeyMarshaler(),
		OverwriteSaramaConfig: saramaConfig,
	}

	return retryConnect(ctx, c.opts.PublisherAttempts, c.opts.PublisherDelay, c.logger, "kafka publisher", func() (message.Publisher, error) {
		return KafkaPublisherFactory(cfg, c.logger)
	})
}

func (c *kafkaConnector) ConnectSubscriber(ctx context.Context, topic string) (message.Subscriber, error) {
	cfg := kafka.SubscriberConfig{
		Brokers:       c.brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: c.consumerGroup,
	}

	return retryConnect(ctx, c.opts.SubscriberAttempts, c.opts.SubscriberDelay, c.logger, "kafka subscriber "+topic, func() (message.Subscriber, error) {
		return KafkaSubscriberFactory(cfg, c.logger)
	})
}

// partitionKeyMarshaler routes messages carrying a partition key header to the
// matching partition; messages without one fall back to their UUID so ordering
// within a correlation is preserved without starving partitions.
func partitionKeyMarshaler() kafka.MarshalerUnmarshaler {
	return kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		if key := msg.Metadata.Get(PartitionKeyMetadata); key != "" {
			return key, nil
		}
		return msg.UUID, nil
	})
}
