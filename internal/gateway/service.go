// Package gateway is the event gateway core: it subscribes one consumer per
// operation topic, runs the operation handlers behind a bounded worker pool,
// and publishes correlated responses plus an audit event stream.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/chatwire/gateway/internal/completion"
	"github.com/chatwire/gateway/internal/config"
	"github.com/chatwire/gateway/internal/event"
	"github.com/chatwire/gateway/internal/logging"
	"github.com/chatwire/gateway/internal/store"
	"github.com/chatwire/gateway/internal/transport"
)

// State is the lifecycle phase of the gateway service.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// ErrAlreadyStarted is returned by Start when the service is not stopped.
var ErrAlreadyStarted = errors.New("gateway already started")

// Service consumes operation topics and serves them until stopped.
type Service struct {
	cfg       *config.Config
	logger    logging.ServiceLogger
	store     store.DomainStore
	engine    completion.Engine
	connector transport.Connector

	workers   *semaphore.Weighted
	responder *Responder

	mu        sync.Mutex
	state     State
	router    *message.Router
	publisher message.Publisher
	cancel    context.CancelFunc
	done      chan struct{}

	metricsServer *http.Server
}

// New builds an unstarted gateway service.
func New(cfg *config.Config, logger logging.ServiceLogger, domainStore store.DomainStore, engine completion.Engine, connector transport.Connector) *Service {
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Service{
		cfg:       cfg,
		logger:    logger,
		store:     domainStore,
		engine:    engine,
		connector: connector,
		workers:   semaphore.NewWeighted(int64(poolSize)),
	}
}

// State returns the current lifecycle phase.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start connects the publisher, registers one consumer per operation topic,
// and runs the router in the background. A publisher connection failure is
// fatal; a single topic's subscriber failure only skips that topic. Start
// returns once the router is running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, s.state)
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()
	s.logger.Info("Gateway running", logging.LogFields{
		"service":   s.cfg.ServiceName,
		"transport": s.cfg.Transport,
	})
	return nil
}

func (s *Service) start(ctx context.Context) error {
	publisher, err := s.connector.ConnectPublisher(ctx)
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}

	wmLogger := logging.NewWatermillAdapter(s.logger)
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: s.cfg.ShutdownTimeout,
	}, wmLogger)
	if err != nil {
		s.closePublisher(publisher)
		return fmt.Errorf("create router: %w", err)
	}
	s.registerMiddlewares(router)

	// Handlers read these through s, so they must be visible before the
	// router runs; Stop reads them under the same mutex.
	s.mu.Lock()
	s.publisher = publisher
	s.responder = NewResponder(publisher, s.cfg.ServiceName, s.logger)
	s.router = router
	s.mu.Unlock()

	registered := 0
	for tag, handler := range s.operationHandlers() {
		topic := tag.Topic(s.cfg.ServiceName)
		sub, err := s.connector.ConnectSubscriber(ctx, topic)
		if err != nil {
			s.logger.Error("Skipping topic, subscriber unavailable", err, logging.LogFields{
				"topic": topic,
			})
			continue
		}
		router.AddNoPublisherHandler(string(tag), topic, sub, handler)
		registered++
	}
	s.logger.Info("Registered consumers", logging.LogFields{
		"registered": registered,
		"total":      len(event.Operations()),
	})

	if err := ctx.Err(); err != nil {
		s.closePublisher(publisher)
		return err
	}
	s.startMetricsServer()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()
	go func() {
		defer close(done)
		if err := router.Run(runCtx); err != nil {
			s.logger.Error("Router stopped with error", err, nil)
		}
	}()

	select {
	case <-router.Running():
	case <-ctx.Done():
		cancel()
		<-done
		s.closePublisher(publisher)
		return ctx.Err()
	}
	return nil
}

func (s *Service) closePublisher(publisher message.Publisher) {
	if err := publisher.Close(); err != nil {
		s.logger.Error("Publisher close failed", err, nil)
	}
}

func (s *Service) startMetricsServer() {
	if !s.cfg.MetricsEnabled || s.cfg.MetricsPort <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.MetricsPort),
		Handler: mux,
	}
	s.mu.Lock()
	s.metricsServer = srv
	s.mu.Unlock()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server stopped", err, nil)
		}
	}()
}

// Stop shuts the service down: it stops consuming, waits up to the shutdown
// timeout for in-flight handlers, then closes the publisher. Stop is
// idempotent; calling it on a stopped service is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateStarting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	cancel, done := s.cancel, s.done
	metricsServer, publisher := s.metricsServer, s.publisher
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(s.cfg.ShutdownTimeout):
			s.logger.Error("Shutdown timeout exceeded, abandoning in-flight handlers", nil, logging.LogFields{
				"timeout": s.cfg.ShutdownTimeout.String(),
			})
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Metrics server shutdown failed", err, nil)
		}
		cancelShutdown()
	}
	if publisher != nil {
		s.closePublisher(publisher)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("Gateway stopped", logging.LogFields{"service": s.cfg.ServiceName})
	return nil
}
