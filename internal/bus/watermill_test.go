// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestBus(t *testing.T) *Watermill {
	t.Helper()
	b := NewInProcess(zerolog.Nop())
	t.Cleanup(func() {
		if err := b.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return b
}

func waitFor(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestInProcessPublishSubscribe(t *testing.T) {
	b := newTestBus(t)

	got := make(chan Event, 1)
	err := b.Subscribe("friends.activityCompleted", func(_ context.Context, evt Event) error {
		got <- evt
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sent := Event{
		Name:       "friends.activityCompleted",
		Refs:       []EntityRef{{Kind: "friends.activity", ID: 7}, {Kind: "friends.user", ID: 10}},
		OccurredAt: time.Now().UTC(),
	}
	if err := b.Publish(context.Background(), sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	evt := waitFor(t, got)
	if evt.Name != sent.Name {
		t.Errorf("Name = %q, want %q", evt.Name, sent.Name)
	}
	if len(evt.Refs) != 2 || evt.Refs[0].ID != 7 || evt.Refs[1].Kind != "friends.user" {
		t.Errorf("Refs = %+v", evt.Refs)
	}
}

func TestInProcessMultipleHandlersPerEvent(t *testing.T) {
	b := newTestBus(t)

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(name string) Handler {
		return func(context.Context, Event) error {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
			return nil
		}
	}
	if err := b.Subscribe("friends.badgeEarned", record("first")); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := b.Subscribe("friends.badgeEarned", record("second")); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), Event{Name: "friends.badgeEarned"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("handlers called %d times, want 2", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInProcessHandlerErrorDoesNotStopDelivery(t *testing.T) {
	b := newTestBus(t)

	got := make(chan Event, 2)
	err := b.Subscribe("friends.activityCompleted", func(_ context.Context, evt Event) error {
		got <- evt
		return errors.New("index write failed")
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ctx := context.Background()
	if err := b.Publish(ctx, Event{Name: "friends.activityCompleted", Refs: []EntityRef{{ID: 1}}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitFor(t, got)

	// The failed message is acked, not redelivered; the next event flows.
	if err := b.Publish(ctx, Event{Name: "friends.activityCompleted", Refs: []EntityRef{{ID: 2}}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	evt := waitFor(t, got)
	if len(evt.Refs) != 1 || evt.Refs[0].ID != 2 {
		t.Errorf("second event = %+v, want ref id 2", evt)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	b := NewInProcess(zerolog.Nop())
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Publish(context.Background(), Event{Name: "friends.badgeEarned"}); err == nil {
		t.Error("Publish after Close succeeded")
	}
}
