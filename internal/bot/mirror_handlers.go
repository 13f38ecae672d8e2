package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/service"
)

func (b *Bot) startProMode(sess *Session, chatID int64) error {
	sess.State = State{}
	if b.Mirror == nil {
		b.send(chatID, "Pro mode needs the user account client. Set TG_API_ID, TG_API_HASH and TG_SESSION_FILE.", mainKeyboard())
		return nil
	}
	sess.State = State{Kind: StateAwaitingSourceLink}
	b.send(chatID, "🚀 Pro mode enabled.\n\n"+
		"Go to the source channel (private or public) and send me the link of the last video you already published in your channel.\n\n"+
		"That will be the starting point.", cancelKeyboard())
	return nil
}

func (b *Bot) onSourceLink(_ context.Context, sess *Session, msg *tgbotapi.Message) error {
	link, err := service.ParseMessageLink(msg.Text)
	if err != nil {
		b.send(msg.Chat.ID, "❌ That link doesn't look right. Send a Telegram message link (e.g. https://t.me/c/123456789/123).", nil)
		return nil
	}

	sess.State = State{Kind: StateAwaitingPostCount, SourceLink: link}
	b.send(msg.Chat.ID, "✅ Link received.\n\n"+
		"Now tell me how many content blocks (photo + videos) to process from that point on.\n\n"+
		"Send just a number (e.g. 20).", cancelKeyboard())
	return nil
}

func (b *Bot) onPostCount(_ context.Context, sess *Session, msg *tgbotapi.Message) error {
	count, err := strconv.Atoi(strings.TrimSpace(msg.Text))
	if err != nil || count <= 0 {
		b.send(msg.Chat.ID, "❌ Please enter a positive whole number.", nil)
		return nil
	}

	req := service.MirrorRequest{
		UserChat:  msg.Chat.ID,
		Link:      sess.State.SourceLink,
		PostCount: count,
		DestChat:  b.opts.ChannelID,
	}
	sess.State = State{}

	b.send(msg.Chat.ID, fmt.Sprintf("⏳ Got it! Processing %d blocks.\n\n"+
		"This can take a while. I'll report progress here, and you can keep using other commands.", count), mainKeyboard())

	b.Tasks.Go("Pro mode", msg.Chat.ID, func(ctx context.Context) error {
		_, err := b.Mirror.Run(ctx, req)
		return err
	})
	return nil
}
