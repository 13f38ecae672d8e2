package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/queue"
	"github.com/maheshrc27/packflow/internal/service"
)

const (
	admin    int64 = 100
	operator int64 = 999
	channel  int64 = -1001234
)

// fakeAPI records every outgoing call in order.
type fakeAPI struct {
	mu  sync.Mutex
	out []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, c)
	return tgbotapi.Message{MessageID: len(f.out)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return "", errors.New("not used by the bot")
}

// texts returns the text of every message sent or edited, in order.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.out {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	t := f.texts()
	if len(t) == 0 {
		return ""
	}
	return t[len(t)-1]
}

func (f *fakeAPI) messagesTo(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.out {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// lastInlineKeyboard returns the markup of the most recent edit or message that carried one.
func (f *fakeAPI) lastInlineKeyboard() *tgbotapi.InlineKeyboardMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		switch m := f.out[i].(type) {
		case tgbotapi.EditMessageTextConfig:
			if m.ReplyMarkup != nil {
				return m.ReplyMarkup
			}
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				return &kb
			}
		}
	}
	return nil
}

type memPacks struct {
	mu      sync.Mutex
	packs   map[string]*models.Pack
	created []string
	seq     int
	jobs    *fakeScheduler
	panicOn string
}

func newMemPacks(jobs *fakeScheduler) *memPacks {
	return &memPacks{packs: make(map[string]*models.Pack), jobs: jobs}
}

func (m *memPacks) Create(_ context.Context, ownerID int64, name string) (string, error) {
	name, err := service.NormalizePackName(name)
	if err != nil {
		return "", err
	}
	if name == m.panicOn {
		panic("store exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[name]; ok {
		return "", models.ErrDuplicateName
	}
	m.packs[name] = &models.Pack{Name: name, OwnerID: ownerID, Content: []models.ContentBlock{}}
	m.created = append(m.created, name)
	return name, nil
}

func (m *memPacks) AddBlock(_ context.Context, _ int64, packName, photoFileID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[packName]
	if !ok {
		return "", models.ErrPackNotFound
	}
	m.seq++
	id := fmt.Sprintf("b%d", m.seq)
	p.Content = append(p.Content, models.ContentBlock{BlockID: id, PhotoFileID: photoFileID})
	return id, nil
}

func (m *memPacks) AddAttachment(_ context.Context, _ int64, packName, blockID string, a models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[packName]
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

func (m *memPacks) List(_ context.Context, _ int64) ([]service.PackSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []service.PackSummary
	for i := len(m.created) - 1; i >= 0; i-- {
		if _, ok := m.packs[m.created[i]]; ok {
			out = append(out, service.PackSummary{Name: m.created[i]})
		}
	}
	return out, nil
}

func (m *memPacks) Get(_ context.Context, _ int64, name string) (*models.Pack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[name]
	if !ok {
		return nil, models.ErrPackNotFound
	}
	cp := *p
	cp.Content = append([]models.ContentBlock{}, p.Content...)
	return &cp, nil
}

func (m *memPacks) Delete(ctx context.Context, ownerID int64, name string) (bool, error) {
	m.mu.Lock()
	_, ok := m.packs[name]
	delete(m.packs, name)
	m.mu.Unlock()
	if ok && m.jobs != nil {
		m.jobs.CancelAllMatching(ctx, ownerID, name)
	}
	return ok, nil
}

func (m *memPacks) DeleteBlock(_ context.Context, _ int64, name, blockID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packs[name]
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

func (m *memPacks) block(name string, i int) models.ContentBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.packs[name].Content[i]
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs map[string]models.ScheduledJob
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]models.ScheduledJob)}
}

func (s *fakeScheduler) Schedule(_ context.Context, job models.ScheduledJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = queue.JobID(job.PackName, job.FireAt)
	s.jobs[job.ID] = job
	return job.ID, nil
}

func (s *fakeScheduler) CancelAllMatching(_ context.Context, _ int64, packName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		if j.PackName == packName {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

func (s *fakeScheduler) all() []models.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledJob
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].FireAt.Before(out[k].FireAt) })
	return out
}

type fakePublisher struct {
	reqs chan service.PublishRequest
}

func (p *fakePublisher) Publish(_ context.Context, req service.PublishRequest) (*service.PublishReport, error) {
	p.reqs <- req
	return &service.PublishReport{PackName: req.PackName}, nil
}

type fakeImmediate struct {
	mu     sync.Mutex
	photos []string
	videos []int
	err    error
}

func (f *fakeImmediate) SetChannelPhoto(_ context.Context, _ int64, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, fileID)
	return f.err
}

func (f *fakeImmediate) ForwardVideo(_ context.Context, _ int64, messageID int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, messageID)
	return f.err
}

type upload struct {
	ChatID int64
	Name   string
	Data   []byte
}

type fakeUploader struct {
	uploads []upload
}

func (u *fakeUploader) UploadDocument(_ context.Context, chatID int64, name string, data []byte) (string, error) {
	u.uploads = append(u.uploads, upload{chatID, name, data})
	return "tg-" + name, nil
}

type fakeSubtitles struct {
	results    []service.SubtitleResult
	data       []byte
	err        error
	downloaded []int64
}

func (s *fakeSubtitles) Search(context.Context, string) ([]service.SubtitleResult, error) {
	return s.results, s.err
}

func (s *fakeSubtitles) RequestDownloadLink(context.Context, int64) (string, error) {
	return "https://dl.example/sub", nil
}

func (s *fakeSubtitles) Fetch(context.Context, string) ([]byte, error) {
	return s.data, nil
}

func (s *fakeSubtitles) Download(_ context.Context, fileID int64) ([]byte, error) {
	s.downloaded = append(s.downloaded, fileID)
	return s.data, s.err
}

type fakeMirror struct {
	reqs chan service.MirrorRequest
}

func (m *fakeMirror) Run(_ context.Context, req service.MirrorRequest) (*models.MirrorReport, error) {
	m.reqs <- req
	return &models.MirrorReport{Requested: req.PostCount}, nil
}

type harness struct {
	bot       *Bot
	api       *fakeAPI
	packs     *memPacks
	jobs      *fakeScheduler
	publisher *fakePublisher
	immediate *fakeImmediate
	uploader  *fakeUploader
	subtitles *fakeSubtitles
	mirror    *fakeMirror
	tasks     *service.TaskRegistry
	msgID     int
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	jobs := newFakeScheduler()
	h := &harness{
		api:       &fakeAPI{},
		packs:     newMemPacks(jobs),
		jobs:      jobs,
		publisher: &fakePublisher{reqs: make(chan service.PublishRequest, 1)},
		immediate: &fakeImmediate{},
		uploader:  &fakeUploader{},
		subtitles: &fakeSubtitles{},
		mirror:    &fakeMirror{reqs: make(chan service.MirrorRequest, 1)},
		tasks:     service.NewTaskRegistry(context.Background(), nil),
	}
	h.bot = New(Deps{
		API:       h.api,
		Packs:     h.packs,
		Scheduler: h.jobs,
		Publisher: h.publisher,
		Immediate: h.immediate,
		Uploader:  h.uploader,
		Tasks:     h.tasks,
		Mirror:    h.mirror,
		Subtitles: h.subtitles,
	}, Options{
		ChannelID:      channel,
		AdminUserID:    admin,
		OperatorChatID: operator,
		Location:       time.UTC,
	})
	h.bot.now = func() time.Time { return testNow }
	return h
}

func (h *harness) message(from int64) *tgbotapi.Message {
	h.msgID++
	return &tgbotapi.Message{
		MessageID: h.msgID,
		From:      &tgbotapi.User{ID: from},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
	}
}

func (h *harness) text(text string) {
	m := h.message(admin)
	m.Text = text
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (h *harness) command(cmd string) {
	m := h.message(admin)
	m.Text = cmd
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (h *harness) photo(fileID string) {
	m := h.message(admin)
	m.Photo = []tgbotapi.PhotoSize{{FileID: fileID + "-small"}, {FileID: fileID}}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (h *harness) video(fileID, caption string) {
	m := h.message(admin)
	m.Video = &tgbotapi.Video{FileID: fileID}
	m.Caption = caption
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (h *harness) document(fileID, name string) {
	m := h.message(admin)
	m.Document = &tgbotapi.Document{FileID: fileID, FileName: name}
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func (h *harness) callback(data string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    &tgbotapi.User{ID: admin},
		Message: &tgbotapi.Message{MessageID: 500, Chat: &tgbotapi.Chat{ID: admin, Type: "private"}},
		Data:    data,
	}})
}

func (h *harness) state() State {
	return h.bot.Sessions.Snapshot(admin)
}

func (h *harness) setState(s State) {
	sess := h.bot.Sessions.Get(admin)
	sess.mu.Lock()
	sess.State = s
	sess.mu.Unlock()
}
