package scoring

import "sort"

// Candidate pairs a snapshot with its score
type Candidate struct {
	Snapshot Snapshot    `json:"snapshot"`
	Result   Result      `json:"result"`
	Risk     RiskProfile `json:"risk"`
	Rank     int         `json:"rank"`
}

// Rank orders candidates by score descending then symbol ascending and numbers them from 1.
// topN <= 0 keeps everything.
func Rank(candidates []Candidate, topN int) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i].Result, ranked[j].Result)
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Less reports whether a ranks ahead of b
func Less(a, b Result) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	return a.Symbol < b.Symbol
}
