package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string)}
}

func (n *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[chatID] = append(n.sent[chatID], text)
	return nil
}

func (n *fakeNotifier) messages(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent[chatID]...)
}

func TestTaskRegistry(t *testing.T) {
	ctx := context.Background()
	notifier := newFakeNotifier()
	reg := NewTaskRegistry(ctx, notifier)

	block := make(chan struct{})
	id := reg.Go("mirror", 42, func(context.Context) error {
		<-block
		return nil
	})
	require.NotEmpty(t, id)

	running := reg.Running()
	require.Len(t, running, 1)
	require.Equal(t, "mirror", running[0].Name)
	close(block)

	reg.Go("publish weekend", 42, func(context.Context) error {
		return errors.New("channel not found")
	})
	reg.Go("publish broken", 42, func(context.Context) error {
		panic("nil block")
	})

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, reg.Wait(wctx))
	require.Empty(t, reg.Running())

	msgs := notifier.messages(42)
	require.Len(t, msgs, 2)
	require.Contains(t, msgs, "publish weekend failed: channel not found")
	require.Contains(t, msgs, "publish broken crashed unexpectedly.")
}
