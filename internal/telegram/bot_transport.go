package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
)

const maxFileBytes = 20 << 20

// Messenger is the part of *tgbotapi.BotAPI used to talk to chats.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// BotTransport sends content through the Bot API and turns flood control
// replies into models.RateLimitedError.
type BotTransport struct {
	api    Messenger
	client *http.Client
}

func NewBotTransport(api Messenger, client *http.Client) *BotTransport {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &BotTransport{api: api, client: client}
}

func (t *BotTransport) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	return mapError(err)
}

func (t *BotTransport) FetchFile(ctx context.Context, fileID string) ([]byte, error) {
	link, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, mapError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
}

func (t *BotTransport) SetChatPhoto(ctx context.Context, chatID int64, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.api.Request(tgbotapi.NewChatPhoto(chatID, tgbotapi.FilePath(path)))
	return mapError(err)
}

func (t *BotTransport) SendVideo(ctx context.Context, chatID int64, fileID, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	v.Caption = caption
	_, err := t.api.Send(v)
	return mapError(err)
}

func (t *BotTransport) SendDocument(ctx context.Context, chatID int64, fileID, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	d.Caption = caption
	_, err := t.api.Send(d)
	return mapError(err)
}

// UploadDocument sends raw bytes as a file and returns the file id Telegram assigned.
func (t *BotTransport) UploadDocument(ctx context.Context, chatID int64, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := t.api.Send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data}))
	if err != nil {
		return "", mapError(err)
	}
	if msg.Document == nil {
		return "", errors.New("upload returned no document")
	}
	return msg.Document.FileID, nil
}

// CopyMessage re-posts a message into chatID with a new caption.
func (t *BotTransport) CopyMessage(ctx context.Context, chatID, fromChatID int64, messageID int, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := tgbotapi.NewCopyMessage(chatID, fromChatID, messageID)
	c.Caption = caption
	_, err := t.api.Request(c)
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &models.RateLimitedError{RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second}
	}
	var valErr tgbotapi.Error
	if errors.As(err, &valErr) && valErr.RetryAfter > 0 {
		return &models.RateLimitedError{RetryAfter: time.Duration(valErr.RetryAfter) * time.Second}
	}
	return err
}
