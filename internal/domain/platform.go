package domain

import "strings"

// Platform is the coarse source site of a URL.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformX         Platform = "x"
	PlatformUnknown   Platform = "unknown"
)

// String returns the string representation of the Platform.
func (p Platform) String() string {
	return string(p)
}

// platformRules are evaluated in order; the first match wins.
var platformRules = []struct {
	platform Platform
	needles  []string
}{
	{PlatformInstagram, []string{"instagram.com"}},
	{PlatformYouTube, []string{"youtu.be", "youtube.com"}},
	{PlatformX, []string{"x.com", "twitter.com"}},
}

// Classify maps a URL to its platform by substring matching.
func Classify(url string) Platform {
	for _, rule := range platformRules {
		for _, needle := range rule.needles {
			if strings.Contains(url, needle) {
				return rule.platform
			}
		}
	}
	return PlatformUnknown
}
