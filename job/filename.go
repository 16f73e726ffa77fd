package job

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mirrobot/mirrobot/config"
)

// seriesPattern matches a season/episode marker anywhere in a display
// name, case-insensitively and in any zero-padding (spec.md §6 "series
// episodes detected by a S<digits>E<digits> pattern").
var seriesPattern = regexp.MustCompile(`(?i)s(\d{1,2})e(\d{1,3})`)

// unsafeFilenameChars covers the characters that are invalid (or awkward)
// in a filename on common filesystems.
var unsafeFilenameChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename strips characters that would be invalid in a filename.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.Replace(strings.TrimSpace(name))
}

// CanonicalizeSeriesName rewrites the first season/episode marker found
// into the canonical "S00E00" form, leaving the rest of the name intact.
func CanonicalizeSeriesName(name string) string {
	m := seriesPattern.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	season, _ := strconv.Atoi(m[1])
	episode, _ := strconv.Atoi(m[2])
	return seriesPattern.ReplaceAllString(name, fmt.Sprintf("S%02dE%02d", season, episode))
}

// OutputFilename builds the encoded output's name from a display name and
// target resolution (spec.md §6: "cleaned display name suffixed with the
// resolution tag and .mp4").
func OutputFilename(displayName string, resolution config.Resolution) string {
	base := strings.TrimSuffix(displayName, filepath.Ext(displayName))
	base = CanonicalizeSeriesName(base)
	base = SanitizeFilename(base)
	return fmt.Sprintf("%s.%s.mp4", base, resolution)
}
