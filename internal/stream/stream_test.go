package stream

import (
	"context"
	"testing"
	"time"

	"sigepa.cl/internal/estate"
)

func TestPublishIsTenantScoped(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	one := s.Subscribe(ctx, 1)
	two := s.Subscribe(ctx, 2)

	s.Publish(estate.Notification{ID: 7, CommunityID: 1, Title: "Asamblea"})

	select {
	case n := <-one:
		if n.ID != 7 {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("community 1 subscriber did not receive notification")
	}
	select {
	case n := <-two:
		t.Fatalf("community 2 subscriber received %+v", n)
	default:
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := s.Subscribe(ctx, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < bufferSize*4; i++ {
			s.Publish(estate.Notification{ID: int64(i), CommunityID: 1})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if len(ch) != bufferSize {
		t.Fatalf("expected buffer to be full, got %d", len(ch))
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, 3)
	if s.Subscribers(3) != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if s.Subscribers(3) != 0 {
		t.Fatalf("subscriber not removed")
	}
}
