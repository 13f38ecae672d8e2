package service

import (
	"regexp"
	"strings"

	"github.com/maheshrc27/packflow/internal/models"
)

var handlePattern = regexp.MustCompile(`@[\p{L}\p{N}_]+|https?://t\.me/\S+`)

// CaptionRewriter replaces foreign channel handles and t.me links with the
// configured replacement handle.
type CaptionRewriter struct {
	replacement string
}

func NewCaptionRewriter(replacement string) *CaptionRewriter {
	replacement = strings.TrimSpace(replacement)
	if replacement != "" && !strings.HasPrefix(replacement, "@") {
		replacement = "@" + replacement
	}
	return &CaptionRewriter{replacement: replacement}
}

func (r *CaptionRewriter) Rewrite(caption string) string {
	if caption == "" {
		return ""
	}
	return handlePattern.ReplaceAllLiteralString(caption, r.replacement)
}

// SubtitleCaption converts a stored subtitle caption into the label shown in the channel.
func SubtitleCaption(caption string) string {
	return strings.Replace(caption, models.SubtitlePrefix, "Subtitle: ", 1)
}
