package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCaptionRewriter_Rewrite(t *testing.T) {
	r := NewCaptionRewriter("@estrenos_fh")

	cases := map[string]struct {
		in   string
		want string
	}{
		"empty":          {"", ""},
		"plain":          {"Episode 4", "Episode 4"},
		"handle":         {"Join @other_channel now", "Join @estrenos_fh now"},
		"link":           {"More at https://t.me/somewhere/12", "More at @estrenos_fh"},
		"http link":      {"http://t.me/x", "@estrenos_fh"},
		"unicode handle": {"vía @canal_película", "vía @estrenos_fh"},
		"several":        {"@a and @b\nhttps://t.me/c", "@estrenos_fh and @estrenos_fh\n@estrenos_fh"},
		"other urls":     {"https://example.com/@x", "https://example.com/@estrenos_fh"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, r.Rewrite(tc.in))
		})
	}
}

func TestCaptionRewriter_Idempotent(t *testing.T) {
	r := NewCaptionRewriter("estrenos_fh")
	inputs := []string{
		"",
		"nothing to see",
		"@one @two https://t.me/three",
		"line one\n@handle line two https://t.me/joinchat/abc",
	}
	for _, in := range inputs {
		once := r.Rewrite(in)
		require.Equal(t, once, r.Rewrite(once))
	}
}

func TestSubtitleCaption(t *testing.T) {
	require.Equal(t, "Subtitle: ep1.srt", SubtitleCaption("SUBTITLE:ep1.srt"))
	require.Equal(t, "no prefix", SubtitleCaption("no prefix"))
}
