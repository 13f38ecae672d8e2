package models

type MessageKind int

const (
	MessageOther MessageKind = iota
	MessagePhotoChange
	MessageVideo
)

func (k MessageKind) String() string {
	switch k {
	case MessagePhotoChange:
		return "photo_change"
	case MessageVideo:
		return "video"
	default:
		return "other"
	}
}

// SourceMessage is one message read from a mirror source channel. Media is the
// transport-level handle the source adapter needs to re-send or download it.
type SourceMessage struct {
	ID      int
	Kind    MessageKind
	Caption string
	Media   any
}

type MirrorBlock struct {
	Photo  SourceMessage
	Videos []SourceMessage
}

type MirrorBlockSummary struct {
	Title       string
	VideosSent  int
	VideosTotal int
	PhotoFailed bool
}

type MirrorReport struct {
	Requested  int
	Attempted  int
	VideosSent int
	Errors     int
	Blocks     []MirrorBlockSummary
}
