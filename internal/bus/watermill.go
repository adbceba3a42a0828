// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/metrics"
)

// Watermill is a Bus over a Watermill publisher/subscriber pair.
// Topic name == event name.
type Watermill struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     zerolog.Logger

	mu           sync.Mutex
	subscribeCtx context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closed       bool
}

// NewInProcess creates a Bus over Watermill's gochannel Pub/Sub, suitable
// for single-process deployments and tests.
func NewInProcess(logger zerolog.Logger) *Watermill {
	ps := gochannel.NewGoChannel(gochannel.Config{
		// Subscribers registered after a publish do not replay history;
		// index state is reconciled by populate, not by event replay.
		OutputChannelBuffer: 64,
	}, NewWatermillLogger(logger))
	return NewWatermill(ps, ps, logger)
}

// NewWatermill creates a Bus over an arbitrary publisher/subscriber pair.
func NewWatermill(pub message.Publisher, sub message.Subscriber, logger zerolog.Logger) *Watermill {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watermill{
		publisher:    pub,
		subscriber:   sub,
		logger:       logger.With().Str("component", "bus").Logger(),
		subscribeCtx: ctx,
		cancel:       cancel,
	}
}

// Publish implements Bus.
func (w *Watermill) Publish(_ context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("bus: marshal event %q: %w", evt.Name, err)
	}
	msg := message.NewMessage(evt.ID, payload)
	if err := w.publisher.Publish(evt.Name, msg); err != nil {
		metrics.BusPublishErrors.WithLabelValues(evt.Name).Inc()
		return fmt.Errorf("bus: publish %q: %w", evt.Name, err)
	}
	metrics.BusEventsPublished.WithLabelValues(evt.Name).Inc()
	return nil
}

// Subscribe implements Bus. Each subscription runs its own consume loop
// until Close.
func (w *Watermill) Subscribe(name string, h Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("bus: subscribe %q: bus closed", name)
	}

	msgs, err := w.subscriber.Subscribe(w.subscribeCtx, name)
	if err != nil {
		return fmt.Errorf("bus: subscribe %q: %w", name, err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range msgs {
			var evt Event
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				w.logger.Error().Err(err).Str("event", name).Msg("undecodable event payload dropped")
				msg.Ack()
				continue
			}
			if err := h(msg.Context(), evt); err != nil {
				w.logger.Error().Err(err).Str("event", name).Msg("event handler failed")
			}
			// Ack regardless: the index is reconciled by populate, and
			// redelivering a failing message would wedge the stream.
			msg.Ack()
		}
	}()
	return nil
}

// Close implements Bus.
func (w *Watermill) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	var firstErr error
	if err := w.publisher.Close(); err != nil {
		firstErr = err
	}
	// gochannel shares one value for pub and sub; closing twice is safe.
	if err := w.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.wg.Wait()
	return firstErr
}
