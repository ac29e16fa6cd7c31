package models

// Supported platform names
const (
	PlatformReddit    = "reddit"
	PlatformTwitter   = "twitter"
	PlatformLinkedIn  = "linkedin"
	PlatformQuora     = "quora"
	PlatformPinterest = "pinterest"
	PlatformYouTube   = "youtube"
)

// AllPlatforms lists every platform the pipeline knows about
var AllPlatforms = []string{
	PlatformReddit,
	PlatformTwitter,
	PlatformLinkedIn,
	PlatformQuora,
	PlatformPinterest,
	PlatformYouTube,
}
