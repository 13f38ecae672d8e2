package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
	"github.com/maheshrc27/packflow/internal/telegram"
)

const operatorChunk = 4000

// JobScheduler registers a publish job, replacing one with the same id.
type JobScheduler interface {
	Schedule(ctx context.Context, job models.ScheduledJob) (string, error)
}

// DocumentUploader sends raw bytes to a chat and returns the stored file id.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, chatID int64, name string, data []byte) (string, error)
}

type Deps struct {
	API       telegram.Messenger
	Sessions  *SessionStore
	Packs     service.PackService
	Scheduler JobScheduler
	Publisher service.PublisherService
	Immediate service.ImmediateService
	Uploader  DocumentUploader
	Tasks     *service.TaskRegistry

	// Optional; the matching menu entries explain what is missing when nil.
	Mirror    service.MirrorService
	Subtitles service.SubtitleService
}

type Options struct {
	ChannelID      int64
	AdminUserID    int64
	OperatorChatID int64
	Location       *time.Location
}

type textHandler func(ctx context.Context, sess *Session, msg *tgbotapi.Message) error

type callbackHandler func(ctx context.Context, sess *Session, cb callbackInput) error

type callbackInput struct {
	chatID int64
	msgID  int
	data   string
}

type Bot struct {
	Deps
	opts Options
	now  func() time.Time

	texts     map[StateKind]textHandler
	callbacks map[string]callbackHandler
}

func New(deps Deps, opts Options) *Bot {
	if deps.Sessions == nil {
		deps.Sessions = NewSessionStore()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.OperatorChatID == 0 {
		opts.OperatorChatID = opts.AdminUserID
	}

	b := &Bot{Deps: deps, opts: opts, now: time.Now}
	b.texts = map[StateKind]textHandler{
		StateIdle:                   b.onIdleText,
		StateAwaitingPackName:       b.onPackName,
		StateCreatingPack:           b.onEditingText,
		StateEditingPack:            b.onEditingText,
		StateAwaitingVideos:         b.onAwaitingVideosText,
		StateAwaitingSubtitle:       b.onAwaitingSubtitleText,
		StateAwaitingSubtitleSearch: b.onSubtitleQuery,
		StateAwaitingSourceLink:     b.onSourceLink,
		StateAwaitingPostCount:      b.onPostCount,
		StateScheduling:             b.onSchedulingText,
	}
	b.callbacks = map[string]callbackHandler{
		cbPackList:       b.onPackList,
		cbPackActions:    b.onPackActions,
		cbPublishNow:     b.onPublishNow,
		cbScheduleStart:  b.onScheduleStart,
		cbEditPack:       b.onEditPack,
		cbDeleteConfirm:  b.onDeleteConfirm,
		cbDeleteDo:       b.onDeleteDo,
		cbBlockAdd:       b.onBlockAdd,
		cbBlockManage:    b.onBlockManage,
		cbBlockDelete:    b.onBlockDelete,
		cbVideoAdd:       b.onVideoAdd,
		cbVideoDone:      b.onVideoDone,
		cbSubtitleAdd:    b.onSubtitleAdd,
		cbSubtitleCancel: b.onSubtitleCancel,
		cbSubtitleSearch: b.onSubtitleSearchStart,
		cbSubtitlePick:   b.onSubtitlePick,
		cbSearchCancel:   b.onSearchCancel,
		cbCalNav:         b.onCalendarNav,
		cbCalDay:         b.onCalendarDay,
		cbCalHour:        b.onCalendarHour,
		cbCalMinute:      b.onCalendarMinute,
		cbCalCancel:      b.onCalendarCancel,
		cbMenu:           b.onMenu,
		cbNoop:           func(context.Context, *Session, callbackInput) error { return nil },
	}
	return b
}

// HandleUpdate processes one update. Anything a handler cannot deal with,
// including a panic, ends up in the backstop: logged, reported to the
// operator chat, apologised for, and the session is reset.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.backstop(ctx, upd, fmt.Errorf("panic: %v", r), debug.Stack())
		}
	}()

	var err error
	switch {
	case upd.Message != nil:
		err = b.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		err = b.handleCallback(ctx, upd.CallbackQuery)
	}
	if err != nil {
		b.backstop(ctx, upd, err, nil)
	}
}

func (b *Bot) authorized(userID int64) bool {
	return userID == b.opts.AdminUserID
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return nil
	}
	if !b.authorized(msg.From.ID) {
		b.send(msg.Chat.ID, "⛔️ This bot is private.", nil)
		return nil
	}

	sess := b.Sessions.Get(msg.From.ID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch {
	case msg.IsCommand():
		return b.onCommand(ctx, sess, msg)
	case len(msg.Photo) > 0:
		return b.onPhoto(ctx, sess, msg)
	case msg.Video != nil:
		return b.onVideo(ctx, sess, msg)
	case msg.Document != nil:
		return b.onDocument(ctx, sess, msg)
	case msg.Text != "":
		return b.onText(ctx, sess, msg)
	}
	return nil
}

func (b *Bot) onCommand(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		sess.State = State{}
		b.send(msg.Chat.ID, "👋 Hi! I'm your content assistant.", mainKeyboard())
	case "cancel":
		return b.cancel(sess, msg.Chat.ID)
	case "tasks":
		b.send(msg.Chat.ID, b.describeTasks(), nil)
	default:
		b.send(msg.Chat.ID, "Unknown command. Use the menu below.", mainKeyboard())
	}
	return nil
}

// onText handles the menu buttons, which work from any state, then hands the
// text to the current state's handler.
func (b *Bot) onText(ctx context.Context, sess *Session, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(msg.Text) {
	case btnCancel:
		return b.cancel(sess, chatID)
	case btnFinishEditing:
		name := sess.State.PackName
		if name == "" {
			name = "the pack"
		}
		sess.State = State{}
		b.send(chatID, fmt.Sprintf("✅ Done with '%s'. You left creation/editing mode.", name), mainKeyboard())
		return nil
	case btnCreatePack:
		sess.State = State{Kind: StateAwaitingPackName}
		b.send(chatID, "OK. What should the new pack be called?", cancelKeyboard())
		return nil
	case btnManagePacks:
		sess.State = State{}
		text, kb, err := b.packList(ctx, sess.UserID, 0)
		if err != nil {
			return err
		}
		b.send(chatID, text, kb)
		return nil
	case btnSearchSubs:
		return b.startIndependentSearch(sess, chatID)
	case btnProMode:
		return b.startProMode(sess, chatID)
	}

	h, ok := b.texts[sess.State.Kind]
	if !ok {
		return fmt.Errorf("no text handler for state %s", sess.State.Kind)
	}
	return h(ctx, sess, msg)
}

func (b *Bot) cancel(sess *Session, chatID int64) error {
	sess.State = State{}
	b.send(chatID, "Operation cancelled. Back to the main menu.", mainKeyboard())
	return nil
}

func (b *Bot) onIdleText(_ context.Context, _ *Session, msg *tgbotapi.Message) error {
	b.send(msg.Chat.ID, "Use the menu below, or send a photo or video to post it right away.", mainKeyboard())
	return nil
}

func (b *Bot) onEditingText(_ context.Context, _ *Session, msg *tgbotapi.Message) error {
	b.send(msg.Chat.ID, "I'm waiting for a photo or a video. If you are done, press 'Finish'.", nil)
	return nil
}

func (b *Bot) onAwaitingVideosText(_ context.Context, _ *Session, msg *tgbotapi.Message) error {
	b.send(msg.Chat.ID, "Send the videos for this photo, then press the done button.", nil)
	return nil
}

func (b *Bot) onAwaitingSubtitleText(_ context.Context, _ *Session, msg *tgbotapi.Message) error {
	b.send(msg.Chat.ID, "Send the subtitle as a file (.srt, .ass, ...).", nil)
	return nil
}

func (b *Bot) onSchedulingText(_ context.Context, _ *Session, msg *tgbotapi.Message) error {
	b.send(msg.Chat.ID, "Pick the date and time with the buttons above, or press Cancel.", nil)
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	b.request(tgbotapi.NewCallback(q.ID, ""))

	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return nil
	}
	if !b.authorized(q.From.ID) {
		return nil
	}

	sess := b.Sessions.Get(q.From.ID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	prefix, rest := splitCallback(q.Data)
	h, ok := b.callbacks[prefix]
	if !ok {
		slog.Warn("unknown callback", "data", q.Data, "user", q.From.ID)
		return nil
	}
	return h(ctx, sess, callbackInput{chatID: q.Message.Chat.ID, msgID: q.Message.MessageID, data: rest})
}

func (b *Bot) onMenu(_ context.Context, sess *Session, cb callbackInput) error {
	sess.State = State{}
	b.request(tgbotapi.NewDeleteMessage(cb.chatID, cb.msgID))
	b.send(cb.chatID, "Main menu:", mainKeyboard())
	return nil
}

func (b *Bot) describeTasks() string {
	if b.Tasks == nil {
		return "No background tasks."
	}
	running := b.Tasks.Running()
	if len(running) == 0 {
		return "No background tasks."
	}
	var sb strings.Builder
	sb.WriteString("Background tasks:\n")
	for _, t := range running {
		fmt.Fprintf(&sb, "• %s (running for %s)\n", t.Name, b.now().Sub(t.StartedAt).Round(time.Second))
	}
	return sb.String()
}

func (b *Bot) backstop(ctx context.Context, upd tgbotapi.Update, err error, stack []byte) {
	var userID, chatID int64
	if u := upd.SentFrom(); u != nil {
		userID = u.ID
	}
	if c := upd.FromChat(); c != nil {
		chatID = c.ID
	}
	slog.Error("unhandled error while processing update", "update", upd.UpdateID, "user", userID, "error", err)

	var state State
	if userID != 0 {
		state = b.Sessions.Snapshot(userID)
	}
	raw, _ := json.Marshal(upd)

	var sb strings.Builder
	fmt.Fprintf(&sb, "An exception occurred: %v\n\nstate = %s pack=%q block=%q\n\nupdate = %s", err, state.Kind, state.PackName, state.BlockID, raw)
	if len(stack) > 0 {
		fmt.Fprintf(&sb, "\n\n%s", stack)
	}
	for _, part := range chunkText(sb.String(), operatorChunk) {
		if _, err := b.API.Send(tgbotapi.NewMessage(b.opts.OperatorChatID, part)); err != nil {
			slog.Error("send error report", "error", err)
		}
	}

	if chatID != 0 {
		b.send(chatID, "❌ Oops, something went wrong. Back to the main menu.", mainKeyboard())
	}
	if userID != 0 {
		b.Sessions.Reset(userID)
	}
}

// chunkText splits s into pieces of at most n runes.
func chunkText(s string, n int) []string {
	var parts []string
	for len(s) > 0 {
		if utf8.RuneCountInString(s) <= n {
			parts = append(parts, s)
			break
		}
		cut, count := 0, 0
		for i := range s {
			if count == n {
				cut = i
				break
			}
			count++
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return parts
}

func (b *Bot) send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.API.Send(msg); err != nil {
		slog.Warn("send message", "chat", chatID, "error", err)
	}
}

func (b *Bot) replyTo(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.API.Send(out); err != nil {
		slog.Warn("send reply", "chat", msg.Chat.ID, "error", err)
	}
}

// edit replaces the callback's message, falling back to a new message when
// Telegram refuses the edit.
func (b *Bot) edit(cb callbackInput, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	e := tgbotapi.NewEditMessageText(cb.chatID, cb.msgID, text)
	e.ReplyMarkup = kb
	if _, err := b.API.Request(e); err == nil {
		return
	}
	msg := tgbotapi.NewMessage(cb.chatID, text)
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := b.API.Send(msg); err != nil {
		slog.Warn("send menu", "chat", cb.chatID, "error", err)
	}
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.API.Request(c); err != nil {
		slog.Debug("telegram request", "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrPackNotFound) || errors.Is(err, models.ErrBlockNotFound)
}
