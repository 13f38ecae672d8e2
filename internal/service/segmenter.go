package service

import (
	"context"

	"github.com/maheshrc27/packflow/internal/models"
)

// MessageIterator walks a source channel's history oldest first.
type MessageIterator interface {
	Next(ctx context.Context) bool
	Value() models.SourceMessage
	Err() error
}

// Segmenter groups a chronological message stream into blocks. A block opens
// at a photo change and collects the videos that follow it until the next
// photo change. Blocks without videos are dropped and do not count toward the
// limit. Videos seen before the first photo change are ignored.
type Segmenter struct {
	limit   int
	emitted int
	open    *models.MirrorBlock
}

func NewSegmenter(limit int) *Segmenter {
	return &Segmenter{limit: limit}
}

// Done reports whether the block limit has been reached.
func (s *Segmenter) Done() bool {
	return s.emitted >= s.limit
}

func (s *Segmenter) Emitted() int {
	return s.emitted
}

// Push feeds one message and returns the block it closed, if any.
func (s *Segmenter) Push(msg models.SourceMessage) (models.MirrorBlock, bool) {
	if s.Done() {
		return models.MirrorBlock{}, false
	}

	switch msg.Kind {
	case models.MessagePhotoChange:
		closed, ok := s.take()
		s.open = &models.MirrorBlock{Photo: msg}
		return closed, ok
	case models.MessageVideo:
		if s.open != nil {
			s.open.Videos = append(s.open.Videos, msg)
		}
	}
	return models.MirrorBlock{}, false
}

// Flush closes the trailing block at end of stream.
func (s *Segmenter) Flush() (models.MirrorBlock, bool) {
	if s.Done() {
		return models.MirrorBlock{}, false
	}
	return s.take()
}

func (s *Segmenter) take() (models.MirrorBlock, bool) {
	open := s.open
	s.open = nil
	if open == nil || len(open.Videos) == 0 {
		return models.MirrorBlock{}, false
	}
	s.emitted++
	return *open, true
}

// Segment drives a Segmenter over it and hands each block to fn in order.
// It stops once limit blocks have been handed over.
func Segment(ctx context.Context, it MessageIterator, limit int, fn func(ctx context.Context, index int, block models.MirrorBlock) error) (int, error) {
	seg := NewSegmenter(limit)

	for !seg.Done() && it.Next(ctx) {
		if block, ok := seg.Push(it.Value()); ok {
			if err := fn(ctx, seg.Emitted(), block); err != nil {
				return seg.Emitted(), err
			}
		}
	}
	if err := it.Err(); err != nil {
		return seg.Emitted(), err
	}

	if block, ok := seg.Flush(); ok {
		if err := fn(ctx, seg.Emitted(), block); err != nil {
			return seg.Emitted(), err
		}
	}
	return seg.Emitted(), nil
}
