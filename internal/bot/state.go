package bot

import (
	"time"

	"github.com/maheshrc27/packflow/internal/service"
)

// StateKind is the step a conversation is in. Every kind has a text handler
// in the dispatch table.
type StateKind int

const (
	StateIdle StateKind = iota
	StateAwaitingPackName
	StateCreatingPack
	StateEditingPack
	StateAwaitingVideos
	StateAwaitingSubtitle
	StateAwaitingSubtitleSearch
	StateAwaitingSourceLink
	StateAwaitingPostCount
	StateScheduling
)

var allStates = []StateKind{
	StateIdle,
	StateAwaitingPackName,
	StateCreatingPack,
	StateEditingPack,
	StateAwaitingVideos,
	StateAwaitingSubtitle,
	StateAwaitingSubtitleSearch,
	StateAwaitingSourceLink,
	StateAwaitingPostCount,
	StateScheduling,
}

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateAwaitingPackName:
		return "awaiting_pack_name"
	case StateCreatingPack:
		return "creating_pack"
	case StateEditingPack:
		return "editing_pack"
	case StateAwaitingVideos:
		return "awaiting_videos"
	case StateAwaitingSubtitle:
		return "awaiting_subtitle"
	case StateAwaitingSubtitleSearch:
		return "awaiting_subtitle_search"
	case StateAwaitingSourceLink:
		return "awaiting_source_link"
	case StateAwaitingPostCount:
		return "awaiting_post_count"
	case StateScheduling:
		return "scheduling"
	default:
		return "unknown"
	}
}

// ScheduleDraft collects the calendar selections before the fire time is composed.
type ScheduleDraft struct {
	Year  int
	Month time.Month
	Day   int
	Hour  int
}

// State is everything a conversation remembers between updates. Fields that
// do not apply to Kind are left zero.
type State struct {
	Kind StateKind

	PackName string
	// BlockID is the current block: the last photo added while creating or
	// editing, or the block bound to a video, subtitle or search step.
	BlockID string

	SourceLink service.SourceLink
	Draft      ScheduleDraft
	Results    []service.SubtitleResult
}

// boundToPack reports whether a subtitle search should attach its result to a block.
func (s State) boundToPack() bool {
	return s.PackName != "" && s.BlockID != ""
}
