package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type MessageCopier interface {
	CopyMessage(ctx context.Context, chatID, fromChatID int64, messageID int, caption string) error
}

// ImmediateService pushes single items straight to the channel, outside any pack.
type ImmediateService interface {
	SetChannelPhoto(ctx context.Context, userChat int64, fileID string) error
	ForwardVideo(ctx context.Context, userChat int64, messageID int, caption string) error
}

type ImmediateOptions struct {
	ChannelID   int64
	TempDir     string
	MaxAttempts int
	Sleep       SleepFunc
}

type immediateService struct {
	tr       ChannelTransport
	copier   MessageCopier
	lease    *ChannelLease
	captions *CaptionRewriter
	opts     ImmediateOptions
}

func NewImmediateService(tr ChannelTransport, copier MessageCopier, lease *ChannelLease, captions *CaptionRewriter, opts ImmediateOptions) ImmediateService {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	return &immediateService{tr: tr, copier: copier, lease: lease, captions: captions, opts: opts}
}

func (s *immediateService) SetChannelPhoto(ctx context.Context, userChat int64, fileID string) error {
	release, err := s.lease.Acquire(ctx, s.opts.ChannelID)
	if err != nil {
		return err
	}
	defer release()

	err = s.policy(userChat).Do(ctx, "immediate photo", func(ctx context.Context) error {
		return uploadChannelPhoto(ctx, s.tr, s.opts.TempDir, s.opts.ChannelID, fileID)
	})
	if err != nil {
		slog.Error("immediate photo", "chat", s.opts.ChannelID, "error", err)
	}
	return err
}

func (s *immediateService) ForwardVideo(ctx context.Context, userChat int64, messageID int, caption string) error {
	err := s.policy(userChat).Do(ctx, "immediate video", func(ctx context.Context) error {
		return s.copier.CopyMessage(ctx, s.opts.ChannelID, userChat, messageID, s.captions.Rewrite(caption))
	})
	if err != nil {
		slog.Error("immediate video", "chat", s.opts.ChannelID, "message", messageID, "error", err)
	}
	return err
}

// policy tells the user about every flood wait before sleeping through it.
func (s *immediateService) policy(userChat int64) RetryPolicy {
	p := NewRetryPolicy(s.opts.MaxAttempts)
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		text := fmt.Sprintf("⏳ Telegram is busy. Retrying in %d seconds...", int(d.Round(time.Second)/time.Second))
		if err := s.tr.Notify(ctx, userChat, text); err != nil {
			slog.Warn("immediate wait notice", "chat", userChat, "error", err)
		}
		return s.opts.Sleep(ctx, d)
	}
	return p
}
