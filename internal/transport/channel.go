package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type channelConnector struct {
	pubsub *gochannel.GoChannel
}

// NewChannelConnector returns an in-process connector backed by a single
// shared gochannel Pub/Sub. Used in tests and local runs without a broker.
func NewChannelConnector(logger watermill.LoggerAdapter) Connector {
	return &channelConnector{
		pubsub: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
	}
}

func (c *channelConnector) ConnectPublisher(ctx context.Context) (message.Publisher, error) {
	return c.pubsub, nil
}

func (c *channelConnector) ConnectSubscriber(ctx context.Context, topic string) (message.Subscriber, error) {
	return c.pubsub, nil
}
