package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
)

func (b *Bot) packList(ctx context.Context, ownerID int64, page int) (string, tgbotapi.InlineKeyboardMarkup, error) {
	packs, err := b.Packs.List(ctx, ownerID)
	if err != nil {
		return "", tgbotapi.InlineKeyboardMarkup{}, err
	}
	text, kb := packListMarkup(packs, page, b.opts.Location)
	return text, kb, nil
}

func (b *Bot) onPackName(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	name, err := b.Packs.Create(ctx, sess.UserID, msg.Text)
	switch {
	case errors.Is(err, service.ErrInvalidName):
		b.send(msg.Chat.ID, fmt.Sprintf("A pack name must be 1 to %d bytes on a single line. Try another one.", service.MaxPackNameBytes), nil)
		return nil
	case errors.Is(err, models.ErrDuplicateName):
		b.send(msg.Chat.ID, "A pack with that name already exists. Pick another name.", nil)
		return nil
	case err != nil:
		return err
	}

	sess.State = State{Kind: StateCreatingPack, PackName: name}
	b.send(msg.Chat.ID, fmt.Sprintf("✅ Pack '%s' created!\n\nYou are now in creation mode.\n"+
		"1. Send me a photo.\n2. Send all the videos for that photo.\n3. Repeat with another photo and its videos.\n\n"+
		"Press 'Finish' when you have added everything.", name), editingKeyboard())
	return nil
}

func (b *Bot) onPhoto(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	switch sess.State.Kind {
	case StateCreatingPack, StateEditingPack:
		blockID, err := b.Packs.AddBlock(ctx, sess.UserID, sess.State.PackName, fileID)
		if errors.Is(err, models.ErrPackNotFound) {
			sess.State = State{}
			b.send(msg.Chat.ID, "This pack no longer exists.", mainKeyboard())
			return nil
		}
		if err != nil {
			return err
		}
		sess.State.BlockID = blockID
		b.replyTo(msg, "🖼️ Photo added. Now send its videos and/or subtitles.")
		return nil
	case StateIdle:
		b.send(msg.Chat.ID, "Processing photo (immediate mode)...", nil)
		if err := b.Immediate.SetChannelPhoto(ctx, msg.Chat.ID, fileID); err != nil {
			if _, limited := models.AsRateLimited(err); limited {
				b.send(msg.Chat.ID, "❌ Could not update the channel photo because of Telegram limits.", nil)
			} else {
				b.send(msg.Chat.ID, fmt.Sprintf("❌ Unexpected error: %v", err), nil)
			}
			return nil
		}
		b.send(msg.Chat.ID, "✅ Channel photo updated.", nil)
		return nil
	default:
		b.send(msg.Chat.ID, "A photo is not expected right now. Finish the current step or press Cancel.", nil)
		return nil
	}
}

func (b *Bot) onVideo(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	switch sess.State.Kind {
	case StateCreatingPack, StateEditingPack:
		if sess.State.BlockID == "" {
			b.replyTo(msg, "Send a photo first, then its videos.")
			return nil
		}
		return b.appendVideo(ctx, sess, msg)
	case StateAwaitingVideos:
		return b.appendVideo(ctx, sess, msg)
	case StateIdle:
		if err := b.Immediate.ForwardVideo(ctx, msg.Chat.ID, msg.MessageID, msg.Caption); err != nil {
			if _, limited := models.AsRateLimited(err); limited {
				b.send(msg.Chat.ID, "❌ Could not send the video because of Telegram limits.", nil)
			} else {
				b.send(msg.Chat.ID, "❌ Unexpected error while sending the video.", nil)
			}
			return nil
		}
		b.send(msg.Chat.ID, "✅ Video sent to the channel (immediate mode).", nil)
		return nil
	default:
		b.send(msg.Chat.ID, "A video is not expected right now. Finish the current step or press Cancel.", nil)
		return nil
	}
}

func (b *Bot) appendVideo(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	a := models.NewVideoAttachment(msg.Video.FileID, msg.Caption)
	err := b.Packs.AddAttachment(ctx, sess.UserID, sess.State.PackName, sess.State.BlockID, a)
	if isNotFound(err) {
		b.replyTo(msg, "❌ That photo is no longer in the pack.")
		return nil
	}
	if err != nil {
		return err
	}
	b.replyTo(msg, "📹 Video added.")
	return nil
}

func (b *Bot) onDocument(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	if sess.State.Kind != StateAwaitingSubtitle {
		b.send(msg.Chat.ID, "Files are only accepted when attaching a subtitle.", nil)
		return nil
	}

	pack, block := sess.State.PackName, sess.State.BlockID
	a := models.NewSubtitleAttachment(msg.Document.FileID, msg.Document.FileName)
	err := b.Packs.AddAttachment(ctx, sess.UserID, pack, block, a)
	switch {
	case isNotFound(err):
		b.replyTo(msg, "❌ That photo is no longer in the pack.")
	case err != nil:
		return err
	default:
		b.replyTo(msg, "📜 Subtitle added.")
	}

	sess.State = State{}
	text, kb := blockManageMarkup(pack, block)
	b.send(msg.Chat.ID, text, kb)
	return nil
}

func (b *Bot) onPackList(ctx context.Context, sess *Session, cb callbackInput) error {
	page, _ := strconv.Atoi(cb.data)
	text, kb, err := b.packList(ctx, sess.UserID, page)
	if err != nil {
		return err
	}
	b.edit(cb, text, &kb)
	return nil
}

func (b *Bot) onPackActions(_ context.Context, sess *Session, cb callbackInput) error {
	sess.State = State{}
	kb := packActionsMarkup(cb.data)
	b.edit(cb, fmt.Sprintf("Actions for pack '%s':", cb.data), &kb)
	return nil
}

func (b *Bot) onPublishNow(ctx context.Context, sess *Session, cb callbackInput) error {
	name := cb.data
	if _, err := b.Packs.Get(ctx, sess.UserID, name); err != nil {
		if errors.Is(err, models.ErrPackNotFound) {
			b.edit(cb, fmt.Sprintf("Pack '%s' no longer exists.", name), nil)
			return nil
		}
		return err
	}

	req := service.PublishRequest{OwnerID: sess.UserID, PackName: name, TargetChat: b.opts.ChannelID}
	b.Tasks.Go(fmt.Sprintf("Publishing '%s'", name), cb.chatID, func(ctx context.Context) error {
		_, err := b.Publisher.Publish(ctx, req)
		if errors.Is(err, models.ErrPackNotFound) {
			return nil
		}
		return err
	})
	b.edit(cb, fmt.Sprintf("🚀 Publishing '%s' in the background. Progress will be reported here.", name), nil)
	return nil
}

func (b *Bot) onDeleteConfirm(_ context.Context, _ *Session, cb callbackInput) error {
	kb := deleteConfirmMarkup(cb.data)
	b.edit(cb, fmt.Sprintf("⚠️ Delete '%s'? This cannot be undone.", cb.data), &kb)
	return nil
}

func (b *Bot) onDeleteDo(ctx context.Context, sess *Session, cb callbackInput) error {
	deleted, err := b.Packs.Delete(ctx, sess.UserID, cb.data)
	if err != nil {
		return err
	}
	notice := fmt.Sprintf("Pack '%s' deleted.", cb.data)
	if !deleted {
		notice = fmt.Sprintf("❌ Could not delete '%s'.", cb.data)
	}

	text, kb, err := b.packList(ctx, sess.UserID, 0)
	if err != nil {
		return err
	}
	b.edit(cb, notice+"\n\n"+text, &kb)
	return nil
}

func (b *Bot) onEditPack(ctx context.Context, sess *Session, cb callbackInput) error {
	pack, err := b.Packs.Get(ctx, sess.UserID, cb.data)
	if errors.Is(err, models.ErrPackNotFound) {
		b.edit(cb, fmt.Sprintf("Pack '%s' no longer exists.", cb.data), nil)
		return nil
	}
	if err != nil {
		return err
	}

	sess.State = State{Kind: StateEditingPack, PackName: pack.Name}
	b.send(cb.chatID, fmt.Sprintf("✏️ Editing pack '%s'.", pack.Name), editingKeyboard())
	text, kb := packEditMarkup(pack)
	b.send(cb.chatID, text, kb)
	b.request(tgbotapi.NewDeleteMessage(cb.chatID, cb.msgID))
	return nil
}

func (b *Bot) onBlockAdd(_ context.Context, sess *Session, cb callbackInput) error {
	sess.State = State{Kind: StateEditingPack, PackName: cb.data}
	b.send(cb.chatID, fmt.Sprintf("OK, send the new photo for pack '%s'.", cb.data), editingKeyboard())
	b.request(tgbotapi.NewDeleteMessage(cb.chatID, cb.msgID))
	return nil
}

func (b *Bot) onBlockManage(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	sess.State = State{}
	text, kb := blockManageMarkup(pack, block)
	b.edit(cb, text, &kb)
	return nil
}

func (b *Bot) onBlockDelete(ctx context.Context, sess *Session, cb callbackInput) error {
	name, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	deleted, err := b.Packs.DeleteBlock(ctx, sess.UserID, name, block)
	if err != nil {
		return err
	}
	if !deleted {
		slog.Info("block already gone", "pack", name, "block", block)
	}

	pack, err := b.Packs.Get(ctx, sess.UserID, name)
	if errors.Is(err, models.ErrPackNotFound) {
		b.edit(cb, fmt.Sprintf("Pack '%s' no longer exists.", name), nil)
		return nil
	}
	if err != nil {
		return err
	}
	text, kb := packEditMarkup(pack)
	b.edit(cb, text, &kb)
	return nil
}

func (b *Bot) onVideoAdd(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	sess.State = State{Kind: StateAwaitingVideos, PackName: pack, BlockID: block}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		button("✅ Done adding videos", packBlockData(cbVideoDone, pack, block)),
	))
	b.edit(cb, "OK, I'm collecting videos.\n\nSend me every video for this photo. Press the button when you are done.", &kb)
	return nil
}

func (b *Bot) onVideoDone(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	sess.State = State{}
	text, kb := blockManageMarkup(pack, block)
	b.edit(cb, "✅ Videos saved.\n\n"+text, &kb)
	return nil
}

func (b *Bot) onSubtitleAdd(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	sess.State = State{Kind: StateAwaitingSubtitle, PackName: pack, BlockID: block}
	kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		button("❌ Cancel", packBlockData(cbSubtitleCancel, pack, block)),
	))
	b.edit(cb, "OK. Send me the subtitle file (.srt, .ass, ...).", &kb)
	return nil
}

func (b *Bot) onSubtitleCancel(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	sess.State = State{}
	text, kb := blockManageMarkup(pack, block)
	b.edit(cb, text, &kb)
	return nil
}
