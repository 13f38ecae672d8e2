package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maheshrc27/packflow/internal/models"
	"github.com/maheshrc27/packflow/internal/service"
)

const (
	btnCreatePack    = "📦 Create pack"
	btnManagePacks   = "📋 Manage packs"
	btnSearchSubs    = "🔎 Search subtitles"
	btnProMode       = "🚀 Pro mode"
	btnFinishEditing = "✅ Finish creating/editing"
	btnCancel        = "❌ Cancel"

	packsPerPage   = 5
	maxSubResults  = 5
	scheduleLayout = "02/01 15:04"
)

// Callback data prefixes. The prefix is everything before the first ':'.
const (
	cbPackList       = "pl"  // pl:<page>
	cbPackActions    = "pa"  // pa:<pack>
	cbPublishNow     = "pn"  // pn:<pack>
	cbScheduleStart  = "ps"  // ps:<pack>
	cbEditPack       = "pe"  // pe:<pack>
	cbDeleteConfirm  = "pdc" // pdc:<pack>
	cbDeleteDo       = "pdd" // pdd:<pack>
	cbBlockAdd       = "ba"  // ba:<pack>
	cbBlockManage    = "bm"  // bm:<pack>:<block>
	cbBlockDelete    = "bd"  // bd:<pack>:<block>
	cbVideoAdd       = "va"  // va:<pack>:<block>
	cbVideoDone      = "vd"  // vd:<pack>:<block>
	cbSubtitleAdd    = "sa"  // sa:<pack>:<block>
	cbSubtitleCancel = "sc"  // sc:<pack>:<block>
	cbSubtitleSearch = "ss"  // ss:<pack>:<block>
	cbSubtitlePick   = "sdl" // sdl:<result index>
	cbSearchCancel   = "scs"
	cbCalNav         = "cn" // cn:<year>:<month>
	cbCalDay         = "cd" // cd:<year>:<month>:<day>
	cbCalHour        = "ch" // ch:<hour>
	cbCalMinute      = "cm" // cm:<minute>
	cbCalCancel      = "cx" // cx:<pack>
	cbMenu           = "menu"
	cbNoop           = "noop"
)

var scheduleMinutes = []int{0, 15, 30, 45}

func splitCallback(data string) (prefix, rest string) {
	prefix, rest, _ = strings.Cut(data, ":")
	return prefix, rest
}

// splitPackBlock separates "<pack>:<block>". Block ids never contain ':',
// pack names may.
func splitPackBlock(rest string) (pack, block string, ok bool) {
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func packBlockData(prefix, pack, block string) string {
	return prefix + ":" + pack + ":" + block
}

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCreatePack)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnManagePacks)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSearchSubs)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnProMode)),
	)
	return kb
}

func editingKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnFinishEditing)))
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
}

func packListMarkup(packs []service.PackSummary, page int, loc *time.Location) (string, tgbotapi.InlineKeyboardMarkup) {
	if len(packs) == 0 {
		return "You have no packs yet.", tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button("Go to main menu", cbMenu)),
		)
	}

	start := page * packsPerPage
	if start < 0 || start >= len(packs) {
		page, start = 0, 0
	}
	end := start + packsPerPage
	if end > len(packs) {
		end = len(packs)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, p := range packs[start:end] {
		label := p.Name
		if p.NextRun != nil {
			label += fmt.Sprintf(" (🗓️ %s)", p.NextRun.In(loc).Format(scheduleLayout))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(label, cbPackActions+":"+p.Name)))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, button("⬅️ Previous", fmt.Sprintf("%s:%d", cbPackList, page-1)))
	}
	if end < len(packs) {
		nav = append(nav, button("Next ➡️", fmt.Sprintf("%s:%d", cbPackList, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Back to menu", cbMenu)))

	return "Pick a pack to manage:", tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func packActionsMarkup(pack string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("🚀 Publish now", cbPublishNow+":"+pack)),
		tgbotapi.NewInlineKeyboardRow(button("🗓️ Schedule", cbScheduleStart+":"+pack)),
		tgbotapi.NewInlineKeyboardRow(button("✏️ Edit content", cbEditPack+":"+pack)),
		tgbotapi.NewInlineKeyboardRow(button("🗑️ Delete pack", cbDeleteConfirm+":"+pack)),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back to list", cbPackList+":0")),
	)
}

func deleteConfirmMarkup(pack string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(fmt.Sprintf("YES, DELETE '%s'", pack), cbDeleteDo+":"+pack)),
		tgbotapi.NewInlineKeyboardRow(button("NO, GO BACK", cbPackActions+":"+pack)),
	)
}

func packEditMarkup(pack *models.Pack) (string, tgbotapi.InlineKeyboardMarkup) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, b := range pack.Content {
		label := fmt.Sprintf("Photo %d (%d attachments)", i+1, len(b.Attachments))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(label, packBlockData(cbBlockManage, pack.Name, b.BlockID))))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(button("➕ Add photo", cbBlockAdd+":"+pack.Name)),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back to actions", cbPackActions+":"+pack.Name)),
	)
	return fmt.Sprintf("Current content of pack '%s':", pack.Name), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func blockManageMarkup(pack, block string) (string, tgbotapi.InlineKeyboardMarkup) {
	return fmt.Sprintf("Managing a photo of pack '%s'.", pack), tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("➕ Add videos", packBlockData(cbVideoAdd, pack, block))),
		tgbotapi.NewInlineKeyboardRow(button("📜 Attach subtitle file", packBlockData(cbSubtitleAdd, pack, block))),
		tgbotapi.NewInlineKeyboardRow(button("🔎 Search subtitle online", packBlockData(cbSubtitleSearch, pack, block))),
		tgbotapi.NewInlineKeyboardRow(button("🗑️ Delete this photo", packBlockData(cbBlockDelete, pack, block))),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Back to pack", cbEditPack+":"+pack)),
	)
}

func searchResultsMarkup(results []service.SubtitleResult) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, r := range results {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(r.Label(), fmt.Sprintf("%s:%d", cbSubtitlePick, i))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("❌ Cancel search", cbSearchCancel)))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// calendarMarkup renders one month, weeks starting on Monday.
func calendarMarkup(year int, month time.Month, pack string) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysIn := first.AddDate(0, 1, -1).Day()
	offset := (int(first.Weekday()) + 6) % 7

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button(first.Format("January 2006"), cbNoop)),
	}
	var header []tgbotapi.InlineKeyboardButton
	for _, d := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, button(d, cbNoop))
	}
	rows = append(rows, header)

	week := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, button(" ", cbNoop))
	}
	for day := 1; day <= daysIn; day++ {
		week = append(week, button(fmt.Sprint(day), fmt.Sprintf("%s:%d:%d:%d", cbCalDay, year, int(month), day)))
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, button(" ", cbNoop))
		}
		rows = append(rows, week)
	}

	prev := first.AddDate(0, -1, 0)
	next := first.AddDate(0, 1, 0)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("<<", fmt.Sprintf("%s:%d:%d", cbCalNav, prev.Year(), int(prev.Month()))),
		button("Cancel", cbCalCancel+":"+pack),
		button(">>", fmt.Sprintf("%s:%d:%d", cbCalNav, next.Year(), int(next.Month()))),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func hourMarkup(d ScheduleDraft) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for start := 0; start < 24; start += 6 {
		var row []tgbotapi.InlineKeyboardButton
		for h := start; h < start+6; h++ {
			row = append(row, button(fmt.Sprintf("%02d", h), fmt.Sprintf("%s:%d", cbCalHour, h)))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("⬅️ Back to calendar", fmt.Sprintf("%s:%d:%d", cbCalNav, d.Year, int(d.Month))),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func minuteMarkup(d ScheduleDraft) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range scheduleMinutes {
		row = append(row, button(fmt.Sprintf("%02d", m), fmt.Sprintf("%s:%d", cbCalMinute, m)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		tgbotapi.NewInlineKeyboardRow(
			button("⬅️ Back to hours", fmt.Sprintf("%s:%d:%d:%d", cbCalDay, d.Year, int(d.Month), d.Day)),
		),
	)
}
