package linkdetect

import (
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/mediabot/internal/domain"
)

type pattern struct {
	platform domain.Platform
	re       *regexp.Regexp
	params   paramRule
}

// patterns are tried in order, so a URL can never match two platforms.
var patterns = []pattern{
	{
		platform: domain.PlatformTwitter,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter\.com|x\.com)/\S+/status/\d+(?:\?\S*)?`),
		params:   paramRule{names: set("s", "t", "ref_src"), prefixes: []string{"utm_"}},
	},
	{
		platform: domain.PlatformYouTube,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.)?(?:youtube\.com/shorts/|youtu\.be/)\S+`),
		params:   paramRule{names: set("si", "feature", "pp"), prefixes: []string{"utm_"}},
	},
	{
		platform: domain.PlatformInstagram,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/(?:p|reel|reels)/\S+`),
		params:   paramRule{names: set("igsh", "igshid", "img_index"), prefixes: []string{"utm_"}},
	},
	{
		// vt., vm., www. and bare tiktok.com
		platform: domain.PlatformTikTok,
		re:       regexp.MustCompile(`(?i)https?://(?:(?:www|vm|vt)\.)?tiktok\.com/\S+`),
		params:   paramRule{dropAll: true},
	},
	{
		platform: domain.PlatformFacebook,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.|m\.)?facebook\.com/\S+`),
		params: paramRule{
			names:    set("rdid", "share_url", "refsrc", "_rdr", "__tn__", "ref", "mibextid"),
			prefixes: []string{"utm_"},
		},
	},
	{
		// commits and pull requests only
		platform: domain.PlatformGitHub,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/[\w\-]+/[\w\-.]+/(?:commit/[0-9a-f]+|pull/\d+)`),
	},
	{
		platform: domain.PlatformReddit,
		re:       regexp.MustCompile(`(?i)https?://(?:www\.|old\.)?reddit\.com/r/\S+`),
		params:   paramRule{names: set("share", "context"), prefixes: []string{"utm_"}},
	},
}

// paramRule is a per-platform denylist of tracking query parameters.
type paramRule struct {
	names    map[string]struct{}
	prefixes []string
	dropAll  bool
}

func (r paramRule) denies(key string) bool {
	if r.dropAll {
		return true
	}
	if _, ok := r.names[key]; ok {
		return true
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
