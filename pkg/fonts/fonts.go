// Package fonts resolves the font face used to draw postcard captions.
//
// Resolution order is fixed: an explicit override path, then font names
// looked up in the system font directories, then the ordered candidate list
// for the host platform, then a face compiled into the binary. The built-in
// face covers Latin text only; CJK captions drawn with it show placeholder
// glyphs, which is logged as a warning and never reported as an error.
//
// Candidate lists are plain data keyed by platform identifier (the values of
// runtime.GOOS), so adding a platform or reordering candidates never touches
// the resolver itself.
package fonts

import "runtime"

// DefaultSize is the caption size in points when none is configured.
const DefaultSize = 24.0

// Platform identifiers used as keys of a [Candidates] map.
const (
	Darwin  = "darwin"
	Windows = "windows"
	Linux   = "linux"
)

// Candidates maps a platform identifier to the font files tried, in order,
// on that platform.
type Candidates map[string][]string

// DefaultCandidates returns the CJK-capable system fonts tried on each
// platform. The map is freshly allocated on every call.
func DefaultCandidates() Candidates {
	return Candidates{
		Darwin: {
			"/System/Library/Fonts/PingFang.ttc",
			"/System/Library/Fonts/STHeiti Light.ttc",
			"/System/Library/Fonts/STHeiti Medium.ttc",
			"/System/Library/Fonts/Hiragino Sans GB.ttc",
			"/Library/Fonts/Arial Unicode.ttf",
		},
		Windows: {
			`C:\Windows\Fonts\msyh.ttc`,
			`C:\Windows\Fonts\simsun.ttc`,
			`C:\Windows\Fonts\simhei.ttf`,
		},
		Linux: {
			"/usr/share/fonts/truetype/droid/DroidSansFallbackFull.ttf",
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/wqy-microhei/wqy-microhei.ttc",
		},
	}
}

// For returns the candidate list for platform. Unknown platforms use the
// Linux list.
func (c Candidates) For(platform string) []string {
	if paths, ok := c[platform]; ok {
		return paths
	}
	return c[Linux]
}

// HostPlatform returns the identifier of the running platform.
func HostPlatform() string {
	return runtime.GOOS
}
