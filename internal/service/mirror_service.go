package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
)

var ErrInvalidLink = errors.New("not a telegram message link")

const titleMaxRunes = 40

// SourceLink points at a message in a public (Username) or private (ChannelID) channel.
type SourceLink struct {
	Username  string
	ChannelID int64
	MessageID int
}

func (l SourceLink) String() string {
	if l.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", l.Username, l.MessageID)
	}
	return fmt.Sprintf("https://t.me/c/%d/%d", l.ChannelID, l.MessageID)
}

// ParseMessageLink accepts t.me/<username>/<id> and t.me/c/<channel>/<id>,
// with or without scheme and query string.
func ParseMessageLink(raw string) (SourceLink, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return SourceLink{}, ErrInvalidLink
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "t.me" && host != "telegram.me" {
		return SourceLink{}, ErrInvalidLink
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	var link SourceLink
	switch {
	case len(parts) >= 3 && parts[0] == "c":
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return SourceLink{}, ErrInvalidLink
		}
		link.ChannelID = id
		parts = parts[2:]
	case len(parts) >= 2 && parts[0] != "c" && parts[0] != "":
		link.Username = parts[0]
		parts = parts[1:]
	default:
		return SourceLink{}, ErrInvalidLink
	}

	msgID, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || msgID <= 0 {
		return SourceLink{}, ErrInvalidLink
	}
	link.MessageID = msgID
	return link, nil
}

// RetryFunc runs fn under a retry policy; RetryPolicy.Do satisfies it.
type RetryFunc func(ctx context.Context, op string, fn func(ctx context.Context) error) error

// MirrorSession is an authorised connection to the source and destination channels.
type MirrorSession interface {
	SourceTitle() string
	// History yields messages newer than anchorID, oldest first. Each page
	// request runs under retry.
	History(anchorID int, retry RetryFunc) MessageIterator
	SetPhoto(ctx context.Context, photo models.SourceMessage) error
	SendVideo(ctx context.Context, video models.SourceMessage, caption string) error
}

type MirrorSource interface {
	Run(ctx context.Context, link SourceLink, destChat int64, fn func(ctx context.Context, s MirrorSession) error) error
}

type MirrorRequest struct {
	UserChat  int64
	Link      SourceLink
	PostCount int
	DestChat  int64
}

type MirrorService interface {
	Run(ctx context.Context, req MirrorRequest) (*models.MirrorReport, error)
}

type MirrorOptions struct {
	PhotoPause  time.Duration
	BlockPause  time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

type mirrorService struct {
	source   MirrorSource
	notifier Notifier
	lease    *ChannelLease
	captions *CaptionRewriter
	policy   RetryPolicy
	opts     MirrorOptions
}

func NewMirrorService(source MirrorSource, notifier Notifier, lease *ChannelLease, captions *CaptionRewriter, opts MirrorOptions) MirrorService {
	policy := NewRetryPolicy(opts.MaxAttempts)
	if opts.Sleep != nil {
		policy.Sleep = opts.Sleep
	}
	return &mirrorService{
		source:   source,
		notifier: notifier,
		lease:    lease,
		captions: captions,
		policy:   policy,
		opts:     opts,
	}
}

func (s *mirrorService) Run(ctx context.Context, req MirrorRequest) (*models.MirrorReport, error) {
	if req.PostCount <= 0 {
		return nil, errors.New("post count must be positive")
	}

	release, err := s.lease.Acquire(ctx, req.DestChat)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &models.MirrorReport{Requested: req.PostCount}
	err = s.source.Run(ctx, req.Link, req.DestChat, func(ctx context.Context, sess MirrorSession) error {
		s.notify(ctx, req.UserChat, fmt.Sprintf("Scanning '%s' from message %d.", sess.SourceTitle(), req.Link.MessageID))

		n, err := Segment(ctx, sess.History(req.Link.MessageID, s.policy.Do), req.PostCount, func(ctx context.Context, index int, block models.MirrorBlock) error {
			if index > 1 {
				if err := s.policy.Sleep(ctx, s.opts.BlockPause); err != nil {
					return err
				}
			}
			summary := s.processBlock(ctx, sess, req, index, block, report)
			report.Blocks = append(report.Blocks, summary)
			return nil
		})
		report.Attempted = n
		return err
	})
	if err != nil {
		slog.Error("mirror run aborted", "source", req.Link.String(), "error", err)
		if report.Attempted > 0 {
			s.notify(ctx, req.UserChat, fmt.Sprintf("Mirror stopped early: %v\n%s", err, FormatMirrorReport(report)))
		}
		return report, fmt.Errorf("mirror %s: %w", req.Link.String(), err)
	}

	s.notify(ctx, req.UserChat, FormatMirrorReport(report))
	return report, nil
}

func (s *mirrorService) processBlock(ctx context.Context, sess MirrorSession, req MirrorRequest, index int, block models.MirrorBlock, report *models.MirrorReport) models.MirrorBlockSummary {
	summary := models.MirrorBlockSummary{
		Title:       blockTitle(block, index),
		VideosTotal: len(block.Videos),
	}
	s.notify(ctx, req.UserChat, fmt.Sprintf("Block %d/%d found. Processing...", index, req.PostCount))

	err := s.policy.Do(ctx, "mirror photo", func(ctx context.Context) error {
		return sess.SetPhoto(ctx, block.Photo)
	})
	if err != nil {
		// The videos would land under the previous block's photo.
		summary.PhotoFailed = true
		report.Errors++
		slog.Error("mirror photo", "message", block.Photo.ID, "error", err)
		s.notify(ctx, req.UserChat, fmt.Sprintf("Block %d/%d skipped, the channel photo could not be updated: %v", index, req.PostCount, err))
		return summary
	}
	if err := s.policy.Sleep(ctx, s.opts.PhotoPause); err != nil {
		return summary
	}

	for _, v := range block.Videos {
		err := s.policy.Do(ctx, "mirror video", func(ctx context.Context) error {
			return sess.SendVideo(ctx, v, s.captions.Rewrite(v.Caption))
		})
		if err != nil {
			report.Errors++
			slog.Error("mirror video", "message", v.ID, "error", err)
			continue
		}
		summary.VideosSent++
		report.VideosSent++
	}
	return summary
}

func blockTitle(block models.MirrorBlock, index int) string {
	for _, v := range block.Videos {
		line := strings.TrimSpace(strings.SplitN(v.Caption, "\n", 2)[0])
		if line == "" {
			break
		}
		if r := []rune(line); len(r) > titleMaxRunes {
			line = string(r[:titleMaxRunes]) + "..."
		}
		return line
	}
	return fmt.Sprintf("Block %d", index)
}

func FormatMirrorReport(r *models.MirrorReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mirror report: %d of %d blocks processed.\n", r.Attempted, r.Requested)
	fmt.Fprintf(&b, "Videos sent: %d\nErrors: %d", r.VideosSent, r.Errors)
	for i, blk := range r.Blocks {
		status := "ok"
		if blk.PhotoFailed {
			status = "photo failed"
		}
		fmt.Fprintf(&b, "\n%d. %s (%d/%d videos, %s)", i+1, blk.Title, blk.VideosSent, blk.VideosTotal, status)
	}
	return b.String()
}

func (s *mirrorService) notify(ctx context.Context, chatID int64, text string) {
	if s.notifier == nil || chatID == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, chatID, text); err != nil {
		slog.Warn("mirror progress notice", "chat", chatID, "error", err)
	}
}
