package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
	"go.uber.org/zap"
)

const (
	historyBatch     = 50
	botAPIChannelOff = 1_000_000_000_000
)

var ErrNotAuthorized = errors.New("mtproto session is not authorized")

// MTProtoSource reads source channels and writes the destination channel as
// a regular user account.
type MTProtoSource struct {
	appID       int
	appHash     string
	sessionPath string
	log         *zap.Logger
}

func NewMTProtoSource(appID int, appHash, sessionPath string, log *zap.Logger) *MTProtoSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &MTProtoSource{appID: appID, appHash: appHash, sessionPath: sessionPath, log: log}
}

func (m *MTProtoSource) Run(ctx context.Context, link service.SourceLink, destChat int64, fn func(ctx context.Context, s service.MirrorSession) error) error {
	client := telegram.NewClient(m.appID, m.appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: m.sessionPath},
		Logger:         m.log.Named("mtproto"),
	})

	return client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return err
		}
		if !status.Authorized {
			return ErrNotAuthorized
		}

		api := client.API()
		chats, err := api.MessagesGetAllChats(ctx, nil)
		if err != nil {
			return fmt.Errorf("list chats: %w", err)
		}

		src, err := findChannel(chats.GetChats(), link.Username, link.ChannelID)
		if err != nil {
			return fmt.Errorf("source channel: %w", err)
		}
		dst, err := findChannel(chats.GetChats(), "", BotAPIToChannelID(destChat))
		if err != nil {
			return fmt.Errorf("destination channel: %w", err)
		}

		return fn(ctx, &mtprotoSession{api: api, src: src, dst: dst})
	})
}

// BotAPIToChannelID converts a Bot API chat id (-100xxxxxxxxxx) to a bare channel id.
func BotAPIToChannelID(chatID int64) int64 {
	if chatID < -botAPIChannelOff {
		return -chatID - botAPIChannelOff
	}
	if chatID < 0 {
		return -chatID
	}
	return chatID
}

func findChannel(chats []tg.ChatClass, username string, id int64) (*tg.Channel, error) {
	for _, c := range chats {
		ch, ok := c.(*tg.Channel)
		if !ok {
			continue
		}
		if username != "" && strings.EqualFold(ch.Username, username) {
			return ch, nil
		}
		if id != 0 && ch.ID == id {
			return ch, nil
		}
	}
	return nil, errors.New("not found among the account's chats")
}

type mtprotoSession struct {
	api *tg.Client
	src *tg.Channel
	dst *tg.Channel
}

func (s *mtprotoSession) SourceTitle() string {
	return s.src.Title
}

func (s *mtprotoSession) History(anchorID int, retry service.RetryFunc) service.MessageIterator {
	return &historyIter{
		api:    s.api,
		retry:  retry,
		peer:   &tg.InputPeerChannel{ChannelID: s.src.ID, AccessHash: s.src.AccessHash},
		cursor: anchorID,
	}
}

func (s *mtprotoSession) SetPhoto(ctx context.Context, msg models.SourceMessage) error {
	photo, ok := msg.Media.(*tg.Photo)
	if !ok {
		return fmt.Errorf("message %d carries no photo", msg.ID)
	}

	var buf bytes.Buffer
	loc := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     largestSize(photo.Sizes),
	}
	if _, err := downloader.NewDownloader().Download(s.api, loc).Stream(ctx, &buf); err != nil {
		return mapRPCError(fmt.Errorf("download photo: %w", err))
	}

	file, err := uploader.NewUploader(s.api).FromBytes(ctx, "photo.jpg", buf.Bytes())
	if err != nil {
		return mapRPCError(fmt.Errorf("upload photo: %w", err))
	}

	_, err = s.api.ChannelsEditPhoto(ctx, &tg.ChannelsEditPhotoRequest{
		Channel: &tg.InputChannel{ChannelID: s.dst.ID, AccessHash: s.dst.AccessHash},
		Photo:   &tg.InputChatUploadedPhoto{File: file},
	})
	return mapRPCError(err)
}

func (s *mtprotoSession) SendVideo(ctx context.Context, msg models.SourceMessage, caption string) error {
	doc, ok := msg.Media.(*tg.Document)
	if !ok {
		return fmt.Errorf("message %d carries no document", msg.ID)
	}

	_, err := s.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     &tg.InputPeerChannel{ChannelID: s.dst.ID, AccessHash: s.dst.AccessHash},
		Media:    &tg.InputMediaDocument{ID: doc.AsInput()},
		Message:  caption,
		RandomID: rand.Int63(),
	})
	return mapRPCError(err)
}

func largestSize(sizes []tg.PhotoSizeClass) string {
	best, area := "", -1
	for _, sz := range sizes {
		switch v := sz.(type) {
		case *tg.PhotoSize:
			if v.W*v.H > area {
				best, area = v.Type, v.W*v.H
			}
		case *tg.PhotoSizeProgressive:
			if v.W*v.H > area {
				best, area = v.Type, v.W*v.H
			}
		}
	}
	if best == "" {
		return "x"
	}
	return best
}

func mapRPCError(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &models.RateLimitedError{RetryAfter: d}
	}
	return err
}

// historyIter pages through a channel oldest first starting after cursor.
type historyIter struct {
	api    *tg.Client
	retry  service.RetryFunc
	peer   tg.InputPeerClass
	cursor int

	buf  []models.SourceMessage
	cur  models.SourceMessage
	done bool
	err  error
}

func (it *historyIter) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if len(it.buf) == 0 && !it.done {
		if err := it.fetch(ctx); err != nil {
			it.err = err
			return false
		}
	}
	if len(it.buf) == 0 {
		return false
	}
	it.cur, it.buf = it.buf[0], it.buf[1:]
	return true
}

func (it *historyIter) Value() models.SourceMessage { return it.cur }

func (it *historyIter) Err() error { return it.err }

func (it *historyIter) fetch(ctx context.Context) error {
	var res tg.MessagesMessagesClass
	page := func(ctx context.Context) error {
		var err error
		res, err = it.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:      it.peer,
			OffsetID:  it.cursor + 1,
			AddOffset: -historyBatch,
			Limit:     historyBatch,
		})
		return mapRPCError(err)
	}

	var err error
	if it.retry != nil {
		err = it.retry(ctx, "mirror history", page)
	} else {
		err = page(ctx)
	}
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}

	modified, ok := res.AsModified()
	if !ok {
		it.done = true
		return nil
	}

	var batch []models.SourceMessage
	for _, m := range modified.GetMessages() {
		sm, ok := classify(m)
		if !ok || sm.ID <= it.cursor {
			continue
		}
		batch = append(batch, sm)
	}
	if len(batch) == 0 {
		it.done = true
		return nil
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
	it.cursor = batch[len(batch)-1].ID
	it.buf = batch
	return nil
}

func classify(m tg.MessageClass) (models.SourceMessage, bool) {
	switch v := m.(type) {
	case *tg.MessageService:
		sm := models.SourceMessage{ID: v.ID, Kind: models.MessageOther}
		if action, ok := v.Action.(*tg.MessageActionChatEditPhoto); ok {
			if photo, ok := action.Photo.(*tg.Photo); ok {
				sm.Kind = models.MessagePhotoChange
				sm.Media = photo
			}
		}
		return sm, true
	case *tg.Message:
		sm := models.SourceMessage{ID: v.ID, Kind: models.MessageOther, Caption: v.Message}
		if media, ok := v.Media.(*tg.MessageMediaDocument); ok {
			if doc, ok := media.Document.(*tg.Document); ok && isVideo(doc) {
				sm.Kind = models.MessageVideo
				sm.Media = doc
			}
		}
		return sm, true
	}
	return models.SourceMessage{}, false
}

func isVideo(doc *tg.Document) bool {
	if strings.HasPrefix(doc.MimeType, "video/") {
		return true
	}
	for _, attr := range doc.Attributes {
		if _, ok := attr.(*tg.DocumentAttributeVideo); ok {
			return true
		}
	}
	return false
}
