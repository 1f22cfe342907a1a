// file: internal/matcher/similarity.go
// version: 2.0.0
// guid: fb2c6251-cf70-4296-bd90-4f341b4e87dc

package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Match thresholds applied by IsGoodMatch.
const (
	MinTitleScore  = 0.6
	MinAuthorScore = 0.5
)

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// trimmed, lowercased inputs. Either input empty scores 0; equal inputs score 1.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	dist := fuzzy.LevenshteinDistance(a, b)
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// MatchResult is the outcome of IsGoodMatch.
type MatchResult struct {
	IsMatch     bool    `json:"isMatch"`
	TitleScore  float64 `json:"titleScore"`
	AuthorScore float64 `json:"authorScore"`
}

// IsGoodMatch decides whether a search result is acceptable for a free-text
// query. An empty queryAuthor means no author was supplied, in which case only
// the title threshold applies. A result without an author scores 0 on author.
func IsGoodMatch(queryTitle, resultTitle, queryAuthor, resultAuthor string) MatchResult {
	res := MatchResult{TitleScore: Similarity(queryTitle, resultTitle)}
	if strings.TrimSpace(queryAuthor) == "" {
		res.IsMatch = res.TitleScore >= MinTitleScore
		return res
	}
	if strings.TrimSpace(resultAuthor) != "" {
		res.AuthorScore = Similarity(queryAuthor, resultAuthor)
	}
	res.IsMatch = res.TitleScore >= MinTitleScore && res.AuthorScore >= MinAuthorScore
	return res
}

// BestAuthorMatch returns the highest scoring author from candidates, so a
// multi-author result is not penalized for listing the queried author second.
func BestAuthorMatch(queryAuthor string, candidates []string) string {
	best, bestScore := "", -1.0
	for _, c := range candidates {
		if s := Similarity(queryAuthor, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}
