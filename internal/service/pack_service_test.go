package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
	"github.com/stretchr/testify/require"
)

type memJobs struct {
	jobs      []models.ScheduledJob
	cancelErr error
}

func (m *memJobs) CancelAllMatching(_ context.Context, ownerID int64, name string) (int, error) {
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	kept := m.jobs[:0]
	n := 0
	for _, j := range m.jobs {
		if j.OwnerID == ownerID && j.PackName == name {
			n++
			continue
		}
		kept = append(kept, j)
	}
	m.jobs = kept
	return n, nil
}

func (m *memJobs) ListPending(context.Context) ([]models.ScheduledJob, error) {
	return m.jobs, nil
}

func TestNormalizePackName(t *testing.T) {
	name, err := NormalizePackName("  Weekend  ")
	require.NoError(t, err)
	require.Equal(t, "Weekend", name)

	for _, bad := range []string{"", "   ", strings.Repeat("x", MaxPackNameBytes+1), "two\nlines"} {
		_, err := NormalizePackName(bad)
		require.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestPackService_CreateDuplicateLeavesPackUntouched(t *testing.T) {
	repo := newMemPackRepo()
	svc := NewPackService(repo, &memJobs{})
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "weekend")
	require.NoError(t, err)
	_, err = svc.AddBlock(ctx, 1, "weekend", "photo-1")
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, " weekend ")
	require.ErrorIs(t, err, models.ErrDuplicateName)

	pack, err := svc.Get(ctx, 1, "weekend")
	require.NoError(t, err)
	require.Len(t, pack.Content, 1)

	_, err = svc.Create(ctx, 2, "weekend")
	require.NoError(t, err, "names are unique per owner")
}

func TestPackService_AppendOrderMatchesCallOrder(t *testing.T) {
	repo := newMemPackRepo()
	svc := NewPackService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "p")
	require.NoError(t, err)
	b, err := svc.AddBlock(ctx, 1, "p", "photo")
	require.NoError(t, err)
	for _, id := range []string{"v1", "v2", "v3"} {
		require.NoError(t, svc.AddAttachment(ctx, 1, "p", b, models.NewVideoAttachment(id, "")))
	}

	pack, err := svc.Get(ctx, 1, "p")
	require.NoError(t, err)
	var got []string
	for _, a := range pack.Content[0].Attachments {
		got = append(got, a.FileID)
	}
	require.Equal(t, []string{"v1", "v2", "v3"}, got)

	require.ErrorIs(t, svc.AddAttachment(ctx, 1, "p", "missing", models.NewVideoAttachment("x", "")), models.ErrBlockNotFound)
	_, err = svc.AddBlock(ctx, 1, "ghost", "photo")
	require.ErrorIs(t, err, models.ErrPackNotFound)
}

func TestPackService_DeleteRemovesJobs(t *testing.T) {
	repo := newMemPackRepo()
	at := time.Now().Add(time.Hour)
	jobs := &memJobs{jobs: []models.ScheduledJob{
		{ID: "pack:weekend:1", PackName: "weekend", OwnerID: 1, FireAt: at},
		{ID: "pack:weekend:2", PackName: "weekend", OwnerID: 1, FireAt: at.Add(time.Hour)},
		{ID: "pack:other:1", PackName: "other", OwnerID: 1, FireAt: at},
	}}
	svc := NewPackService(repo, jobs)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "weekend")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 1, "weekend")
	require.NoError(t, err)
	require.True(t, deleted)
	require.Len(t, jobs.jobs, 1)
	require.Equal(t, "other", jobs.jobs[0].PackName)

	deleted, err = svc.Delete(ctx, 1, "weekend")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestPackService_DeleteReportsCancelFailure(t *testing.T) {
	repo := newMemPackRepo()
	svc := NewPackService(repo, &memJobs{cancelErr: errors.New("redis down")})
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "weekend")
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, 1, "weekend")
	require.True(t, deleted)
	require.ErrorContains(t, err, "redis down")
}

func TestPackService_ListAnnotatesNextRun(t *testing.T) {
	repo := newMemPackRepo()
	at := time.Date(2030, 1, 2, 20, 30, 0, 0, time.UTC)
	jobs := &memJobs{jobs: []models.ScheduledJob{
		{PackName: "a", OwnerID: 1, FireAt: at.Add(time.Hour)},
		{PackName: "a", OwnerID: 1, FireAt: at},
		{PackName: "a", OwnerID: 2, FireAt: at.Add(-time.Hour)},
	}}
	svc := NewPackService(repo, jobs)
	ctx := context.Background()
	_, err := svc.Create(ctx, 1, "a")
	require.NoError(t, err)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].NextRun)
	require.True(t, at.Equal(*list[0].NextRun))
}
