package domain

// Platform identifies a supported social media site.
//
// The set is closed: adding a platform means adding a constant here,
// a pattern in linkdetect and an extractor variant.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformFacebook  Platform = "facebook"
	PlatformGitHub    Platform = "github"
	PlatformReddit    Platform = "reddit"
)

// Platforms lists every supported platform in detection priority order.
func Platforms() []Platform {
	return []Platform{
		PlatformTwitter,
		PlatformYouTube,
		PlatformInstagram,
		PlatformTikTok,
		PlatformFacebook,
		PlatformGitHub,
		PlatformReddit,
	}
}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	for _, known := range Platforms() {
		if p == known {
			return true
		}
	}
	return false
}

func (p Platform) String() string { return string(p) }
