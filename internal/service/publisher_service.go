package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/repository"
	"golang.org/x/time/rate"
)

var ErrNotAnImage = errors.New("photo file is not an image")

// ChannelTransport is the subset of the chat transport used to publish packs.
type ChannelTransport interface {
	Notifier
	FetchFile(ctx context.Context, fileID string) ([]byte, error)
	SetChatPhoto(ctx context.Context, chatID int64, path string) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
}

type PublishRequest struct {
	OwnerID    int64
	PackName   string
	TargetChat int64
}

type PublishReport struct {
	PackName          string
	Blocks            int
	PhotosSet         int
	AttachmentsSent   int
	AttachmentsFailed int
	FailedBlocks      []int
}

func (r *PublishReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Publishing of pack '%s' finished.\n", r.PackName)
	fmt.Fprintf(&b, "Blocks: %d/%d photos set\n", r.PhotosSet, r.Blocks)
	fmt.Fprintf(&b, "Attachments: %d sent, %d failed", r.AttachmentsSent, r.AttachmentsFailed)
	if len(r.FailedBlocks) > 0 {
		parts := make([]string, len(r.FailedBlocks))
		for i, n := range r.FailedBlocks {
			parts[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(&b, "\nSkipped blocks: %s", strings.Join(parts, ", "))
	}
	return b.String()
}

type PublisherService interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishReport, error)
}

type PublisherOptions struct {
	TempDir     string
	ItemDelay   time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

type publisherService struct {
	packs    repository.PackRepository
	tr       ChannelTransport
	lease    *ChannelLease
	captions *CaptionRewriter
	policy   RetryPolicy
	pacer    *rate.Limiter
	tempDir  string
}

func NewPublisherService(
	packs repository.PackRepository,
	tr ChannelTransport,
	lease *ChannelLease,
	captions *CaptionRewriter,
	opts PublisherOptions) PublisherService {
	policy := NewRetryPolicy(opts.MaxAttempts)
	if opts.Sleep != nil {
		policy.Sleep = opts.Sleep
	}

	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}

	return &publisherService{
		packs:    packs,
		tr:       tr,
		lease:    lease,
		captions: captions,
		policy:   policy,
		pacer:    rate.NewLimiter(limit, 1),
		tempDir:  opts.TempDir,
	}
}

func (s *publisherService) Publish(ctx context.Context, req PublishRequest) (*PublishReport, error) {
	content, err := s.packs.GetForPublish(ctx, req.OwnerID, req.PackName)
	if err != nil {
		return nil, fmt.Errorf("load pack %q: %w", req.PackName, err)
	}
	if content == nil {
		s.notify(ctx, req.OwnerID, fmt.Sprintf("Pack '%s' does not exist.", req.PackName))
		return nil, models.ErrPackNotFound
	}

	report := &PublishReport{PackName: req.PackName, Blocks: len(content)}
	if len(content) == 0 {
		s.notify(ctx, req.OwnerID, fmt.Sprintf("Pack '%s' is empty, nothing to publish.", req.PackName))
		return report, nil
	}

	release, err := s.lease.Acquire(ctx, req.TargetChat)
	if err != nil {
		return nil, err
	}
	defer release()

	slog.Info("publishing pack", "pack", req.PackName, "owner", req.OwnerID, "chat", req.TargetChat, "blocks", len(content))

	for i, block := range content {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.publishBlock(ctx, req, i, block, report)
	}

	s.notify(ctx, req.OwnerID, report.Summary())
	return report, nil
}

func (s *publisherService) publishBlock(ctx context.Context, req PublishRequest, index int, block models.ContentBlock, report *PublishReport) {
	total := report.Blocks
	policy := s.announced(req.OwnerID)

	err := policy.Do(ctx, "set chat photo", func(ctx context.Context) error {
		return s.setPhoto(ctx, req.TargetChat, block.PhotoFileID)
	})
	if err != nil {
		slog.Error("publish block photo", "pack", req.PackName, "block", block.BlockID, "error", err)
		report.FailedBlocks = append(report.FailedBlocks, index+1)
		s.notify(ctx, req.OwnerID, fmt.Sprintf("(%d/%d) Could not update the channel photo, skipping this block: %v", index+1, total, err))
		return
	}
	report.PhotosSet++
	s.notify(ctx, req.OwnerID, fmt.Sprintf("(%d/%d) Channel photo updated. Sending attachments...", index+1, total))

	for n, a := range block.Attachments {
		if err := s.pacer.Wait(ctx); err != nil {
			return
		}

		err := policy.Do(ctx, "send attachment", func(ctx context.Context) error {
			if a.IsSubtitle() {
				return s.tr.SendDocument(ctx, req.TargetChat, a.FileID, SubtitleCaption(a.Caption))
			}
			return s.tr.SendVideo(ctx, req.TargetChat, a.FileID, s.captions.Rewrite(a.Caption))
		})
		if err != nil {
			report.AttachmentsFailed++
			slog.Error("publish attachment", "pack", req.PackName, "block", block.BlockID, "file", a.FileID, "error", err)
			s.notify(ctx, req.OwnerID, fmt.Sprintf("(%d/%d) Attachment %d could not be sent: %v", index+1, total, n+1, err))
			continue
		}
		report.AttachmentsSent++
	}

	slog.Info("block published", "pack", req.PackName, "block", block.BlockID, "index", index+1)
}

// announced returns the publish retry policy with a notice to chatID before every wait.
func (s *publisherService) announced(chatID int64) RetryPolicy {
	p := s.policy
	sleep := p.Sleep
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		s.notify(ctx, chatID, fmt.Sprintf("⏳ Telegram is busy. Retrying in %d seconds...", int(d.Round(time.Second)/time.Second)))
		return sleep(ctx, d)
	}
	return p
}

func (s *publisherService) setPhoto(ctx context.Context, chatID int64, fileID string) error {
	return uploadChannelPhoto(ctx, s.tr, s.tempDir, chatID, fileID)
}

// uploadChannelPhoto downloads the photo to a temporary file, which is removed on every path.
func uploadChannelPhoto(ctx context.Context, tr ChannelTransport, tempDir string, chatID int64, fileID string) error {
	data, err := tr.FetchFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("fetch photo: %w", err)
	}

	kind, err := filetype.Match(data)
	if err != nil || !filetype.IsImage(data) {
		return ErrNotAnImage
	}

	f, err := os.CreateTemp(tempDir, "photo-*."+kind.Extension)
	if err != nil {
		return err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return tr.SetChatPhoto(ctx, chatID, path)
}

func (s *publisherService) notify(ctx context.Context, chatID int64, text string) {
	if chatID == 0 {
		return
	}
	if err := s.tr.Notify(ctx, chatID, text); err != nil {
		slog.Warn("publish progress notice", "chat", chatID, "error", err)
	}
}
