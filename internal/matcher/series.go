// file: internal/matcher/series.go
// version: 2.0.0
// guid: 040c23c8-5388-4dd9-9107-448b1c4b842d

package matcher

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jdfalk/bookmeta/internal/models"
)

// Trailing series annotations such as "Dune (Dune Chronicles, #1)".
var parenSeriesPattern = regexp.MustCompile(`^(.+?)\s*\(([^()]+?),?\s*#\s*(\d+(?:\.\d+)?)\)\s*$`)

// Leading series prefixes, tried in order.
var seriesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.+?)\s+Book\s+(\d+)(?:\s*:|\s+-)\s+(.+)$`),   // "Series Book 1: Title"
	regexp.MustCompile(`(?i)^(.+?)\s+Vol\.?\s+(\d+)(?:\s*:|\s+-)\s+(.+)$`), // "Series Vol. 1: Title"
	regexp.MustCompile(`(?i)^(.+?)\s+Volume\s+(\d+)(?:\s*:|\s+-)\s+(.+)$`), // "Series Volume 1: Title"
	regexp.MustCompile(`(?i)^(.+?)\s+#(\d+)(?:\s*:|\s+-)\s+(.+)$`),         // "Series #1: Title"
}

// SplitSeries separates series information from a display title. The title is
// returned unchanged with a nil series when no annotation is recognized.
func SplitSeries(title string) (string, *models.Series) {
	title = strings.TrimSpace(title)
	if m := parenSeriesPattern.FindStringSubmatch(title); m != nil {
		pos, err := strconv.ParseFloat(m[3], 64)
		if err == nil {
			return strings.TrimSpace(m[1]), &models.Series{
				Name:     strings.TrimSpace(m[2]),
				Position: models.Float64(pos),
			}
		}
	}
	for _, p := range seriesPatterns {
		m := p.FindStringSubmatch(title)
		if len(m) < 4 {
			continue
		}
		pos, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		return strings.TrimSpace(m[3]), &models.Series{
			Name:     strings.TrimSpace(m[1]),
			Position: models.Float64(pos),
		}
	}
	return title, nil
}
