// Package stream fans out community notifications to live subscribers.
package stream

import (
	"context"
	"sync"

	"sigepa.cl/internal/estate"
)

const bufferSize = 16

type subscriber struct {
	communityID int64
	ch          chan estate.Notification
}

// Stream delivers each notification only to subscribers of the same
// community.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// New returns an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for communityID. The returned channel is
// closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, communityID int64) <-chan estate.Notification {
	ch := make(chan estate.Notification, bufferSize)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{communityID: communityID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish implements estate.Publisher.
func (s *Stream) Publish(n estate.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.communityID != n.CommunityID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			// slow subscriber, drop
		}
	}
}

// Subscribers reports how many subscribers communityID has.
func (s *Stream) Subscribers(communityID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sub := range s.subs {
		if sub.communityID == communityID {
			n++
		}
	}
	return n
}
