package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/maheshrc27/packflow/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}

type memPackRepo struct {
	mu    sync.Mutex
	packs map[string]*models.Pack
	seq   int
}

func newMemPackRepo() *memPackRepo {
	return &memPackRepo{packs: make(map[string]*models.Pack)}
}

func packKey(owner int64, name string) string { return fmt.Sprintf("%d/%s", owner, name) }

func (r *memPackRepo) Create(_ context.Context, name string, ownerID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packs[packKey(ownerID, name)]; ok {
		return models.ErrDuplicateName
	}
	r.packs[packKey(ownerID, name)] = &models.Pack{Name: name, OwnerID: ownerID, Content: []models.ContentBlock{}}
	return nil
}

func (r *memPackRepo) AppendBlock(_ context.Context, ownerID int64, packName, photoFileID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[packKey(ownerID, packName)]
	if !ok {
		return "", models.ErrPackNotFound
	}
	r.seq++
	id := fmt.Sprintf("b%d", r.seq)
	p.Content = append(p.Content, models.ContentBlock{BlockID: id, PhotoFileID: photoFileID, Attachments: []models.Attachment{}})
	return id, nil
}

func (r *memPackRepo) AppendAttachment(_ context.Context, ownerID int64, packName, blockID string, a models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[packKey(ownerID, packName)]
	if !ok {
		return models.ErrBlockNotFound
	}
	b := p.Block(blockID)
	if b == nil {
		return models.ErrBlockNotFound
	}
	b.Attachments = append(b.Attachments, a)
	return nil
}

func (r *memPackRepo) ListNames(_ context.Context, ownerID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, p := range r.packs {
		if p.OwnerID == ownerID {
			names = append(names, p.Name)
		}
	}
	return names, nil
}

func (r *memPackRepo) GetForPublish(ctx context.Context, ownerID int64, name string) ([]models.ContentBlock, error) {
	p, err := r.GetForEdit(ctx, name, ownerID)
	if err != nil || p == nil {
		return nil, err
	}
	return p.Content, nil
}

func (r *memPackRepo) GetForEdit(_ context.Context, name string, ownerID int64) (*models.Pack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[packKey(ownerID, name)]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Content = make([]models.ContentBlock, len(p.Content))
	for i, b := range p.Content {
		b.Attachments = append([]models.Attachment{}, b.Attachments...)
		cp.Content[i] = b
	}
	return &cp, nil
}

func (r *memPackRepo) Exists(_ context.Context, name string, ownerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.packs[packKey(ownerID, name)]
	return ok, nil
}

func (r *memPackRepo) Delete(_ context.Context, name string, ownerID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packs[packKey(ownerID, name)]; !ok {
		return false, nil
	}
	delete(r.packs, packKey(ownerID, name))
	return true, nil
}

func (r *memPackRepo) DeleteBlock(_ context.Context, ownerID int64, name, blockID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[packKey(ownerID, name)]
	if !ok {
		return false, nil
	}
	for i, b := range p.Content {
		if b.BlockID == blockID {
			p.Content = append(p.Content[:i], p.Content[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type sentItem struct {
	Kind    string
	ChatID  int64
	FileID  string
	Caption string
}

// fakeTransport records every call. Failures are scripted per file id as a
// queue of errors returned on successive attempts.
type fakeTransport struct {
	mu         sync.Mutex
	files      map[string][]byte
	failures   map[string][]error
	sent       []sentItem
	notices    []string
	photoPaths []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: make(map[string][]byte), failures: make(map[string][]error)}
}

func (f *fakeTransport) fail(fileID string, errs ...error) {
	f.failures[fileID] = append(f.failures[fileID], errs...)
}

func (f *fakeTransport) nextFailure(fileID string) error {
	q := f.failures[fileID]
	if len(q) == 0 {
		return nil
	}
	f.failures[fileID] = q[1:]
	return q[0]
}

func (f *fakeTransport) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

func (f *fakeTransport) FetchFile(_ context.Context, fileID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(fileID); err != nil {
		return nil, err
	}
	data, ok := f.files[fileID]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (f *fakeTransport) SetChatPhoto(_ context.Context, chatID int64, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f.photoPaths = append(f.photoPaths, path)
	f.sent = append(f.sent, sentItem{Kind: "photo", ChatID: chatID, FileID: path})
	return nil
}

func (f *fakeTransport) SendVideo(_ context.Context, chatID int64, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(fileID); err != nil {
		return err
	}
	f.sent = append(f.sent, sentItem{Kind: "video", ChatID: chatID, FileID: fileID, Caption: caption})
	return nil
}

func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, fileID, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextFailure(fileID); err != nil {
		return err
	}
	f.sent = append(f.sent, sentItem{Kind: "document", ChatID: chatID, FileID: fileID, Caption: caption})
	return nil
}
