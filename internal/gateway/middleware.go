package gateway

import (
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chatwire/gateway"

// tracerMiddleware opens a span per handled message and records handler
// failures on it.
func tracerMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx, span := otel.Tracer(tracerName).Start(msg.Context(), "gateway.handle",
			trace.WithAttributes(attribute.String("message.uuid", msg.UUID)))
		msg.SetContext(ctx)
		defer span.End()

		msgs, err := h(msg)
		if err != nil {
			span.RecordError(err)
		}
		return msgs, err
	}
}

// registerMiddlewares installs the router-wide chain: panic recovery first,
// then tracing, then Prometheus router metrics when enabled.
func (s *Service) registerMiddlewares(router *message.Router) {
	router.AddMiddleware(middleware.Recoverer)
	router.AddMiddleware(tracerMiddleware)

	if s.cfg.MetricsEnabled {
		builder := metrics.NewPrometheusMetricsBuilder(prometheus.DefaultRegisterer, "gateway", s.cfg.Transport)
		builder.AddPrometheusRouterMetrics(router)
	}
}
