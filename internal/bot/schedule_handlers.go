package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/queue"
)

const expiredSchedule = "This scheduling session has expired. Start again from the pack list."

func (b *Bot) onScheduleStart(ctx context.Context, sess *Session, cb callbackInput) error {
	name := cb.data
	if _, err := b.Packs.Get(ctx, sess.UserID, name); err != nil {
		if errors.Is(err, models.ErrPackNotFound) {
			b.edit(cb, fmt.Sprintf("Pack '%s' no longer exists.", name), nil)
			return nil
		}
		return err
	}

	now := b.now().In(b.opts.Location)
	sess.State = State{Kind: StateScheduling, PackName: name}
	kb := calendarMarkup(now.Year(), now.Month(), name)
	b.edit(cb, fmt.Sprintf("🗓️ Scheduling pack '%s'.\n\nThe bot's current time is %s.\n\nPick a date:", name, now.Format("15:04")), &kb)
	return nil
}

// ints parses a ':'-separated list of integers.
func ints(data string, n int) ([]int, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != n {
		return nil, false
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (b *Bot) onCalendarNav(_ context.Context, sess *Session, cb callbackInput) error {
	if sess.State.Kind != StateScheduling {
		b.edit(cb, expiredSchedule, nil)
		return nil
	}
	v, ok := ints(cb.data, 2)
	if !ok || v[1] < 1 || v[1] > 12 {
		return nil
	}
	kb := calendarMarkup(v[0], time.Month(v[1]), sess.State.PackName)
	b.edit(cb, fmt.Sprintf("🗓️ Scheduling pack '%s'.\n\nPick a date:", sess.State.PackName), &kb)
	return nil
}

func (b *Bot) onCalendarDay(_ context.Context, sess *Session, cb callbackInput) error {
	if sess.State.Kind != StateScheduling {
		b.edit(cb, expiredSchedule, nil)
		return nil
	}
	v, ok := ints(cb.data, 3)
	if !ok || v[1] < 1 || v[1] > 12 || v[2] < 1 || v[2] > 31 {
		return nil
	}

	sess.State.Draft = ScheduleDraft{Year: v[0], Month: time.Month(v[1]), Day: v[2]}
	kb := hourMarkup(sess.State.Draft)
	b.edit(cb, fmt.Sprintf("Date selected: %d/%d/%d.\n\nNow pick the hour:", v[2], v[1], v[0]), &kb)
	return nil
}

func (b *Bot) onCalendarHour(_ context.Context, sess *Session, cb callbackInput) error {
	if sess.State.Kind != StateScheduling || sess.State.Draft.Day == 0 {
		b.edit(cb, expiredSchedule, nil)
		return nil
	}
	hour, err := strconv.Atoi(cb.data)
	if err != nil || hour < 0 || hour > 23 {
		return nil
	}

	sess.State.Draft.Hour = hour
	kb := minuteMarkup(sess.State.Draft)
	b.edit(cb, fmt.Sprintf("Hour selected: %02d:XX.\n\nNow pick the minutes:", hour), &kb)
	return nil
}

func (b *Bot) onCalendarMinute(ctx context.Context, sess *Session, cb callbackInput) error {
	if sess.State.Kind != StateScheduling || sess.State.Draft.Day == 0 {
		b.edit(cb, expiredSchedule, nil)
		return nil
	}
	minute, err := strconv.Atoi(cb.data)
	if err != nil || !validMinute(minute) {
		return nil
	}

	d := sess.State.Draft
	name := sess.State.PackName
	fireAt, err := queue.ComposeFireTime(d.Year, d.Month, d.Day, d.Hour, minute, b.opts.Location, b.now())
	if err == nil {
		_, err = b.Scheduler.Schedule(ctx, models.ScheduledJob{
			PackName:   name,
			OwnerID:    sess.UserID,
			TargetChat: b.opts.ChannelID,
			FireAt:     fireAt,
		})
	}

	switch {
	case errors.Is(err, queue.ErrPastDateTime):
		sess.State.Draft = ScheduleDraft{}
		kb := calendarMarkup(d.Year, d.Month, name)
		b.edit(cb, "❌ That date and time have already passed. Pick another date:", &kb)
		return nil
	case err != nil:
		slog.Error("schedule pack", "pack", name, "error", err)
		b.edit(cb, fmt.Sprintf("❌ Could not schedule the task: %v", err), nil)
	default:
		local := fireAt.In(b.opts.Location)
		b.edit(cb, fmt.Sprintf("✅ Pack '%s' scheduled for %s.", name, local.Format("02/01/2006 at 15:04")), nil)
	}

	sess.State = State{}
	b.send(cb.chatID, "Back to the main menu.", mainKeyboard())
	return nil
}

func (b *Bot) onCalendarCancel(_ context.Context, sess *Session, cb callbackInput) error {
	sess.State = State{}
	kb := packActionsMarkup(cb.data)
	b.edit(cb, fmt.Sprintf("Scheduling cancelled.\n\nActions for pack '%s':", cb.data), &kb)
	return nil
}

func validMinute(m int) bool {
	for _, v := range scheduleMinutes {
		if v == m {
			return true
		}
	}
	return false
}
