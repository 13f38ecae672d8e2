package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/repository"
)

// MaxPackNameBytes keeps pack names short enough to fit in callback data.
const MaxPackNameBytes = 40

var ErrInvalidName = errors.New("invalid pack name")

// PackJobs is the part of the scheduler the pack service needs.
type PackJobs interface {
	CancelAllMatching(ctx context.Context, ownerID int64, packName string) (int, error)
	ListPending(ctx context.Context) ([]models.ScheduledJob, error)
}

type PackSummary struct {
	Name    string     `json:"name"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type PackService interface {
	Create(ctx context.Context, ownerID int64, name string) (string, error)
	AddBlock(ctx context.Context, ownerID int64, packName, photoFileID string) (string, error)
	AddAttachment(ctx context.Context, ownerID int64, packName, blockID string, a models.Attachment) error
	List(ctx context.Context, ownerID int64) ([]PackSummary, error)
	Get(ctx context.Context, ownerID int64, name string) (*models.Pack, error)
	Delete(ctx context.Context, ownerID int64, name string) (bool, error)
	DeleteBlock(ctx context.Context, ownerID int64, name, blockID string) (bool, error)
}

type packService struct {
	packs repository.PackRepository
	jobs  PackJobs
}

func NewPackService(packs repository.PackRepository, jobs PackJobs) PackService {
	return &packService{packs: packs, jobs: jobs}
}

func NormalizePackName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > MaxPackNameBytes || !utf8.ValidString(name) || strings.ContainsAny(name, "\n\r") {
		return "", ErrInvalidName
	}
	return name, nil
}

func (s *packService) Create(ctx context.Context, ownerID int64, name string) (string, error) {
	name, err := NormalizePackName(name)
	if err != nil {
		return "", err
	}
	if err := s.packs.Create(ctx, name, ownerID); err != nil {
		return "", err
	}
	slog.Info("pack created", "pack", name, "owner", ownerID)
	return name, nil
}

func (s *packService) AddBlock(ctx context.Context, ownerID int64, packName, photoFileID string) (string, error) {
	return s.packs.AppendBlock(ctx, ownerID, packName, photoFileID)
}

func (s *packService) AddAttachment(ctx context.Context, ownerID int64, packName, blockID string, a models.Attachment) error {
	return s.packs.AppendAttachment(ctx, ownerID, packName, blockID, a)
}

// List returns the owner's packs newest first, annotated with the next scheduled run.
func (s *packService) List(ctx context.Context, ownerID int64) ([]PackSummary, error) {
	names, err := s.packs.ListNames(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	next := make(map[string]time.Time)
	if s.jobs != nil {
		jobs, err := s.jobs.ListPending(ctx)
		if err != nil {
			slog.Warn("list scheduled jobs", "error", err)
		}
		for _, j := range jobs {
			if j.OwnerID != ownerID {
				continue
			}
			if cur, ok := next[j.PackName]; !ok || j.FireAt.Before(cur) {
				next[j.PackName] = j.FireAt
			}
		}
	}

	out := make([]PackSummary, 0, len(names))
	for _, n := range names {
		sum := PackSummary{Name: n}
		if at, ok := next[n]; ok {
			sum.NextRun = &at
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *packService) Get(ctx context.Context, ownerID int64, name string) (*models.Pack, error) {
	pack, err := s.packs.GetForEdit(ctx, name, ownerID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, models.ErrPackNotFound
	}
	return pack, nil
}

// Delete removes the pack and every scheduled publication of it.
func (s *packService) Delete(ctx context.Context, ownerID int64, name string) (bool, error) {
	deleted, err := s.packs.Delete(ctx, name, ownerID)
	if err != nil || !deleted {
		return deleted, err
	}

	if s.jobs != nil {
		if _, err := s.jobs.CancelAllMatching(ctx, ownerID, name); err != nil {
			return true, fmt.Errorf("pack deleted but scheduled jobs remain: %w", err)
		}
	}
	slog.Info("pack deleted", "pack", name, "owner", ownerID)
	return true, nil
}

func (s *packService) DeleteBlock(ctx context.Context, ownerID int64, name, blockID string) (bool, error) {
	return s.packs.DeleteBlock(ctx, ownerID, name, blockID)
}
