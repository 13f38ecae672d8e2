package bot

import (
	"context"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/telegram"
)

const laneBuffer = 32

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Dispatcher gives every user a goroutine of their own. A user's updates are
// handled in arrival order; different users never wait on each other.
type Dispatcher struct {
	ctx     context.Context
	handler UpdateHandler

	mu    sync.Mutex
	lanes map[int64]chan tgbotapi.Update
	wg    sync.WaitGroup
}

func NewDispatcher(ctx context.Context, handler UpdateHandler) *Dispatcher {
	return &Dispatcher{ctx: ctx, handler: handler, lanes: make(map[int64]chan tgbotapi.Update)}
}

func (d *Dispatcher) Dispatch(upd tgbotapi.Update) {
	var userID int64
	if u := upd.SentFrom(); u != nil {
		userID = u.ID
	}

	select {
	case d.lane(userID) <- upd:
	case <-d.ctx.Done():
	}
}

func (d *Dispatcher) lane(userID int64) chan tgbotapi.Update {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.lanes[userID]
	if ok {
		return ch
	}

	ch = make(chan tgbotapi.Update, laneBuffer)
	d.lanes[userID] = ch
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.ctx.Done():
				return
			case upd := <-ch:
				d.handler.HandleUpdate(d.ctx, upd)
			}
		}
	}()
	return ch
}

// Wait blocks until every lane has stopped. Lanes stop when the dispatcher's
// context is cancelled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Poll long-polls the Bot API until ctx is cancelled.
func Poll(ctx context.Context, api *tgbotapi.BotAPI, d *Dispatcher) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("delete webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(u)

	slog.Info("polling for updates", "bot", api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			d.Dispatch(upd)
		}
	}
}

// RegisterWebhook points Telegram at url, which must end in the secret path segment.
func RegisterWebhook(api telegram.Messenger, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return err
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}
	_, err = api.Request(wh)
	return err
}
