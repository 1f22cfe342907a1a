// file: internal/resolver/consensus.go
// version: 1.0.0
// guid: 65db36d8-8031-43d4-9d29-0a3089031131

package resolver

import (
	"github.com/jdfalk/bookmeta/internal/models"
)

// MinConsensusSupport is the number of agreeing submissions a value needs.
const MinConsensusSupport = 2

// ConsensusFact is a value agreed on by independent submissions.
type ConsensusFact struct {
	Value   int `json:"value"`
	Support int `json:"support"`
}

// Consensus returns the most supported positive value when at least
// MinConsensusSupport submissions agree on it exactly. Ties go to the value
// seen first.
func Consensus(values []int) (ConsensusFact, bool) {
	counts := make(map[int]int, len(values))
	order := make([]int, 0, len(values))
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	var best ConsensusFact
	for _, v := range order {
		if counts[v] > best.Support {
			best = ConsensusFact{Value: v, Support: counts[v]}
		}
	}
	if best.Support < MinConsensusSupport {
		return ConsensusFact{}, false
	}
	return best, true
}

// submissionValues keeps one value per user, the most recent, so a single
// user resubmitting cannot manufacture agreement. Anonymous rows count
// individually.
func submissionValues(deadlines []models.Deadline) []int {
	latest := make(map[string]int)
	values := make([]int, 0, len(deadlines))
	for _, d := range deadlines {
		if d.UserID == "" {
			values = append(values, d.TotalQuantity)
			continue
		}
		if i, ok := latest[d.UserID]; ok {
			values[i] = d.TotalQuantity
			continue
		}
		latest[d.UserID] = len(values)
		values = append(values, d.TotalQuantity)
	}
	return values
}
