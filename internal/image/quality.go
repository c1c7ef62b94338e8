package image

import (
	"regexp"
	"strings"
)

// Thumbnail URL shapes served by social and catalog platforms.
var (
	sizeSegment   = regexp.MustCompile(`(^|[/_.-])[sp]\d+x\d+([/_.-]|$)`)
	lowResSuffix  = regexp.MustCompile(`-(t50x50|small|tiny|large|badge|mini)\.`)
	shortSuffix   = regexp.MustCompile(`_s\.(jpe?g|png|webp)`)
	catalogSuffix = regexp.MustCompile(`-(t\d+x\d+|small|tiny|large|badge|mini|crop)\.(jpe?g|png|webp)`)
)

// IsLowQualityURL reports whether url looks like a small fixed-size
// thumbnail. An empty url counts as low quality.
func IsLowQualityURL(url string) bool {
	if strings.TrimSpace(url) == "" {
		return true
	}
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return sizeSegment.MatchString(path) || lowResSuffix.MatchString(path) || shortSuffix.MatchString(path)
}

// HighResVariant rewrites a catalog avatar URL to its 500x500 rendition. It
// returns "" when url has no recognizable size suffix.
func HighResVariant(url string) string {
	loc := catalogSuffix.FindStringSubmatchIndex(url)
	if loc == nil {
		return ""
	}
	ext := url[loc[4]:loc[5]]
	out := url[:loc[0]] + "-t500x500." + ext + url[loc[1]:]
	if out == url {
		return ""
	}
	return out
}

// MinSide is the smallest width or height accepted for a hosted image.
const MinSide = 150

// IsLowResolution reports whether a decoded image is below MinSide in either
// dimension. Unknown (zero) dimensions are not low resolution.
func IsLowResolution(w, h int) bool {
	if w == 0 || h == 0 {
		return false
	}
	return w < MinSide || h < MinSide
}
