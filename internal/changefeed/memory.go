package changefeed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryFeed is an in-process Feed for single-instance deployments and tests.
// Events arriving while a handler is still busy are coalesced into one.
type MemoryFeed struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]chan Event)}
}

// Publish delivers ev to every subscriber of its channel without blocking.
func (f *MemoryFeed) Publish(_ context.Context, ev Event) error {
	if ev.At == 0 {
		ev.At = time.Now().Unix()
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs[Channel(ev.Table, ev.OrganizationID)] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registers handler on the (table, tenant) channel.
func (f *MemoryFeed) Subscribe(ctx context.Context, table string, orgID uuid.UUID, handler Handler) (func(), error) {
	channel := Channel(table, orgID)
	ch := make(chan Event, 1)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[channel] == nil {
		f.subs[channel] = make(map[int]chan Event)
	}
	f.subs[channel][id] = ch
	f.mu.Unlock()

	ctx, cancelCtx := context.WithCancel(ctx)
	go func() {
		defer f.remove(channel, id)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}

// Subscribers returns the number of live subscriptions on a channel.
func (f *MemoryFeed) Subscribers(table string, orgID uuid.UUID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[Channel(table, orgID)])
}

func (f *MemoryFeed) remove(channel string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[channel], id)
	if len(f.subs[channel]) == 0 {
		delete(f.subs, channel)
	}
}
