// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package bus

import (
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/loyaltyworks/recommender/internal/metrics"
)

// NATSConfig configures the NATS JetStream transport.
type NATSConfig struct {
	URL           string        `koanf:"url"`
	QueueGroup    string        `koanf:"queue_group"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
}

// DefaultNATSConfig returns production defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://127.0.0.1:4222",
		QueueGroup:    "recommender",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		AckWait:       30 * time.Second,
	}
}

// NewNATS creates a Bus over NATS JetStream for multi-process
// deployments. The publisher is wrapped in a circuit breaker so a broker
// outage fails fast instead of stalling request handlers.
func NewNATS(cfg NATSConfig, logger zerolog.Logger) (*Watermill, error) {
	wmLogger := NewWatermillLogger(logger)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("bus: nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		AckWaitTimeout:   cfg.AckWait,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
		},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("bus: nats subscriber: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "bus-publisher",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, to.String())
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("publisher circuit breaker state changed")
		},
	})

	return NewWatermill(&breakerPublisher{pub: pub, cb: breaker}, sub, logger), nil
}

// breakerPublisher wraps a publisher with circuit-breaker protection.
type breakerPublisher struct {
	pub message.Publisher
	cb  *gobreaker.CircuitBreaker[any]
}

// Publish implements message.Publisher.
func (p *breakerPublisher) Publish(topic string, messages ...*message.Message) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.pub.Publish(topic, messages...)
	})
	return err
}

// Close implements message.Publisher.
func (p *breakerPublisher) Close() error {
	return p.pub.Close()
}
