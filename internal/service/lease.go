package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ChannelLease serialises publish and mirror runs that target the same channel.
type ChannelLease struct {
	mu    sync.Mutex
	slots map[int64]*semaphore.Weighted
}

func NewChannelLease() *ChannelLease {
	return &ChannelLease{slots: make(map[int64]*semaphore.Weighted)}
}

func (l *ChannelLease) slot(chatID int64) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[chatID]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.slots[chatID] = s
	}
	return s
}

// Acquire blocks until the channel is free or ctx is done.
func (l *ChannelLease) Acquire(ctx context.Context, chatID int64) (func(), error) {
	s := l.slot(chatID)
	if err := s.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.Release(1) }) }, nil
}
