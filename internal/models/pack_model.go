package models

import (
	"strings"
	"time"
)

// SubtitlePrefix marks an attachment caption as a subtitle file rather than a video caption.
const SubtitlePrefix = "SUBTITLE:"

type Pack struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	OwnerID   int64          `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Content   []ContentBlock `json:"content"`
}

type ContentBlock struct {
	BlockID     string       `db:"block_id" json:"block_id"`
	PhotoFileID string       `db:"photo_file_id" json:"photo_file_id"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	FileID   string `db:"file_id" json:"file_id"`
	Caption  string `db:"caption" json:"caption"`
	FileName string `db:"file_name" json:"file_name,omitempty"`
}

func NewVideoAttachment(fileID, caption string) Attachment {
	return Attachment{FileID: fileID, Caption: caption}
}

func NewSubtitleAttachment(fileID, fileName string) Attachment {
	return Attachment{FileID: fileID, Caption: SubtitlePrefix + fileName, FileName: fileName}
}

func (a Attachment) IsSubtitle() bool {
	return strings.HasPrefix(a.Caption, SubtitlePrefix)
}

// Block returns the block with the given id, or nil.
func (p *Pack) Block(blockID string) *ContentBlock {
	for i := range p.Content {
		if p.Content[i].BlockID == blockID {
			return &p.Content[i]
		}
	}
	return nil
}
