package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
	"github.com/stretchr/testify/require"
)

type copyCall struct {
	ChatID, FromChatID int64
	MessageID          int
	Caption            string
}

type fakeCopier struct {
	errs  []error
	calls []copyCall
}

func (c *fakeCopier) CopyMessage(_ context.Context, chatID, fromChatID int64, messageID int, caption string) error {
	c.calls = append(c.calls, copyCall{chatID, fromChatID, messageID, caption})
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	return nil
}

func newTestImmediate(t *testing.T, tr *fakeTransport, cp *fakeCopier) (ImmediateService, *recordingSleeper) {
	t.Helper()
	sl := &recordingSleeper{}
	svc := NewImmediateService(tr, cp, NewChannelLease(), NewCaptionRewriter("@mine"), ImmediateOptions{
		ChannelID:   channel,
		TempDir:     t.TempDir(),
		MaxAttempts: 3,
		Sleep:       sl.sleep,
	})
	return svc, sl
}

func TestImmediateService_SetChannelPhoto(t *testing.T) {
	tr := newFakeTransport()
	tr.files["p1"] = pngHeader
	svc, _ := newTestImmediate(t, tr, &fakeCopier{})

	require.NoError(t, svc.SetChannelPhoto(context.Background(), 42, "p1"))
	require.Len(t, tr.photoPaths, 1)
	require.Equal(t, channel, tr.sent[0].ChatID)
}

func TestImmediateService_SetChannelPhotoRejectsNonImage(t *testing.T) {
	tr := newFakeTransport()
	tr.files["p1"] = []byte("plain text, not a picture")
	svc, _ := newTestImmediate(t, tr, &fakeCopier{})

	err := svc.SetChannelPhoto(context.Background(), 42, "p1")
	require.ErrorIs(t, err, ErrNotAnImage)
	require.Empty(t, tr.photoPaths)
}

func TestImmediateService_ForwardVideo(t *testing.T) {
	t.Run("rewrites caption", func(t *testing.T) {
		cp := &fakeCopier{}
		svc, _ := newTestImmediate(t, newFakeTransport(), cp)

		require.NoError(t, svc.ForwardVideo(context.Background(), 42, 7, "New episode @other"))
		require.Equal(t, []copyCall{{channel, 42, 7, "New episode @mine"}}, cp.calls)
	})

	t.Run("waits out flood control and tells the user", func(t *testing.T) {
		tr := newFakeTransport()
		cp := &fakeCopier{errs: []error{&models.RateLimitedError{RetryAfter: 4 * time.Second}}}
		svc, sl := newTestImmediate(t, tr, cp)

		require.NoError(t, svc.ForwardVideo(context.Background(), 42, 7, ""))
		require.Len(t, cp.calls, 2)
		require.Equal(t, []time.Duration{5 * time.Second}, sl.waits)
		require.Contains(t, tr.notices[0], "Retrying in 5 seconds")
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		rl := &models.RateLimitedError{RetryAfter: time.Second}
		cp := &fakeCopier{errs: []error{rl, rl, rl, rl}}
		svc, _ := newTestImmediate(t, newFakeTransport(), cp)

		err := svc.ForwardVideo(context.Background(), 42, 7, "")
		_, limited := models.AsRateLimited(err)
		require.True(t, limited)
		require.Len(t, cp.calls, 3)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		cp := &fakeCopier{errs: []error{errors.New("message to copy not found")}}
		svc, _ := newTestImmediate(t, newFakeTransport(), cp)

		require.Error(t, svc.ForwardVideo(context.Background(), 42, 7, ""))
		require.Len(t, cp.calls, 1)
	})
}
