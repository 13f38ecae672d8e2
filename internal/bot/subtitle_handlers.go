package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
)

const subtitlesDisabled = "Subtitle search is not configured on this bot."

func (b *Bot) startIndependentSearch(sess *Session, chatID int64) error {
	sess.State = State{}
	if b.Subtitles == nil {
		b.send(chatID, subtitlesDisabled, mainKeyboard())
		return nil
	}
	sess.State = State{Kind: StateAwaitingSubtitleSearch}
	b.send(chatID, "OK. Which movie or show should I look for?", cancelKeyboard())
	return nil
}

func (b *Bot) onSubtitleSearchStart(_ context.Context, sess *Session, cb callbackInput) error {
	pack, block, ok := splitPackBlock(cb.data)
	if !ok {
		return nil
	}
	if b.Subtitles == nil {
		b.send(cb.chatID, subtitlesDisabled, nil)
		return nil
	}
	sess.State = State{Kind: StateAwaitingSubtitleSearch, PackName: pack, BlockID: block}
	b.send(cb.chatID, "OK. Which movie or show should I look for? (e.g. The Matrix or Breaking Bad S01E01)", cancelKeyboard())
	b.request(tgbotapi.NewDeleteMessage(cb.chatID, cb.msgID))
	return nil
}

func (b *Bot) onSubtitleQuery(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	query := strings.TrimSpace(msg.Text)
	if query == "" {
		return nil
	}
	if b.Subtitles == nil {
		sess.State = State{}
		b.send(msg.Chat.ID, subtitlesDisabled, mainKeyboard())
		return nil
	}

	b.send(msg.Chat.ID, fmt.Sprintf("🔎 Searching subtitles for '%s'...", query), nil)
	results, err := b.Subtitles.Search(ctx, query)
	if err != nil {
		sess.State = State{}
		b.send(msg.Chat.ID, fmt.Sprintf("❌ Error: %v", err), mainKeyboard())
		return nil
	}
	if len(results) == 0 {
		sess.State = State{}
		b.send(msg.Chat.ID, "No results found. Try another title.", mainKeyboard())
		return nil
	}
	if len(results) > maxSubResults {
		results = results[:maxSubResults]
	}

	sess.State.Results = results
	b.send(msg.Chat.ID, "Results found. Pick one to download:", searchResultsMarkup(results))
	return nil
}

func (b *Bot) onSubtitlePick(ctx context.Context, sess *Session, cb callbackInput) error {
	idx, err := strconv.Atoi(cb.data)
	state := sess.State
	if err != nil || state.Kind != StateAwaitingSubtitleSearch || idx < 0 || idx >= len(state.Results) {
		b.edit(cb, "This search has expired. Start a new one.", nil)
		return nil
	}
	result := state.Results[idx]

	if state.boundToPack() {
		b.edit(cb, "📥 Downloading and adding to the pack...", nil)
	} else {
		b.edit(cb, "📥 Downloading subtitle...", nil)
	}

	data, err := b.Subtitles.Download(ctx, result.FileID)
	if err != nil {
		sess.State = State{}
		b.edit(cb, fmt.Sprintf("❌ Error: %v", err), nil)
		if state.boundToPack() {
			text, kb := blockManageMarkup(state.PackName, state.BlockID)
			b.send(cb.chatID, text, kb)
		} else {
			b.send(cb.chatID, "Back to the main menu.", mainKeyboard())
		}
		return nil
	}

	if !state.boundToPack() {
		name := fmt.Sprintf("subtitle_%d.srt", result.FileID)
		if _, err := b.Uploader.UploadDocument(ctx, cb.chatID, name, data); err != nil {
			return fmt.Errorf("send subtitle: %w", err)
		}
		sess.State = State{}
		b.edit(cb, "✅ Subtitle sent.", nil)
		b.send(cb.chatID, "Search finished.", mainKeyboard())
		return nil
	}

	name := fmt.Sprintf("%s_sub_%d.srt", state.PackName, result.FileID)
	fileID, err := b.Uploader.UploadDocument(ctx, cb.chatID, name, data)
	if err != nil {
		return fmt.Errorf("upload subtitle: %w", err)
	}
	err = b.Packs.AddAttachment(ctx, sess.UserID, state.PackName, state.BlockID, models.NewSubtitleAttachment(fileID, name))
	switch {
	case errors.Is(err, models.ErrBlockNotFound), errors.Is(err, models.ErrPackNotFound):
		b.edit(cb, "❌ That photo is no longer in the pack.", nil)
	case err != nil:
		return err
	default:
		b.edit(cb, "✅ Subtitle downloaded and added to the pack!", nil)
	}

	sess.State = State{}
	text, kb := blockManageMarkup(state.PackName, state.BlockID)
	b.send(cb.chatID, text, kb)
	return nil
}

func (b *Bot) onSearchCancel(_ context.Context, sess *Session, cb callbackInput) error {
	sess.State = State{}
	b.edit(cb, "Subtitle search cancelled.", nil)
	b.send(cb.chatID, "Back to the main menu.", mainKeyboard())
	return nil
}
