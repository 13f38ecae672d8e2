package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeMessenger struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	err      error
	fileURL  string
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	return tgbotapi.Message{Document: &tgbotapi.Document{FileID: "uploaded-1"}}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	if f.err != nil {
		return nil, f.err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func TestMapError(t *testing.T) {
	require.NoError(t, mapError(nil))

	flood := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5}}
	wait, ok := models.AsRateLimited(mapError(flood))
	require.True(t, ok)
	require.Equal(t, 5*time.Second, wait)

	plain := errors.New("Bad Request: chat not found")
	require.Equal(t, plain, mapError(plain))

	badReq := &tgbotapi.Error{Code: 400, Message: "Bad Request"}
	_, ok = models.AsRateLimited(mapError(badReq))
	require.False(t, ok)
}

func TestBotTransport_SendVideoRateLimited(t *testing.T) {
	m := &fakeMessenger{err: &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 2}}}
	tr := NewBotTransport(m, nil)

	err := tr.SendVideo(context.Background(), -100, "vid", "caption")
	_, ok := models.AsRateLimited(err)
	require.True(t, ok)

	v, isVideo := m.sent[0].(tgbotapi.VideoConfig)
	require.True(t, isVideo)
	require.Equal(t, "caption", v.Caption)
}

func TestBotTransport_FetchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	tr := NewBotTransport(&fakeMessenger{fileURL: srv.URL + "/file/photo.jpg"}, srv.Client())
	data, err := tr.FetchFile(context.Background(), "photo")
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(data))
}

func TestBotTransport_UploadDocument(t *testing.T) {
	m := &fakeMessenger{}
	tr := NewBotTransport(m, nil)

	id, err := tr.UploadDocument(context.Background(), 42, "ep1.srt", []byte("1\n"))
	require.NoError(t, err)
	require.Equal(t, "uploaded-1", id)
}

func TestBotTransport_CancelledContext(t *testing.T) {
	m := &fakeMessenger{}
	tr := NewBotTransport(m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, tr.Notify(ctx, 1, "hi"), context.Canceled)
	require.Empty(t, m.sent)
}
