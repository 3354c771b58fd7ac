package recommendations

import "sort"

type merged struct {
	rec        BookRecommendation
	strategies map[Type]bool
	reasons    map[string]bool
}

// Aggregate merges strategy results into one ranked list of at most limit entries.
// Failed results are skipped. A book suggested again by a different strategy keeps the
// higher score plus boost (capped at 100), the union of reasons and a combined explanation.
func Aggregate(results []StrategyResult, limit int, boost float64) []BookRecommendation {
	byBook := make(map[string]*merged)
	var order []string

	for _, res := range results {
		if !res.OK() {
			continue
		}

		for _, cand := range res.Candidates {
			id := cand.Book.ID
			m, seen := byBook[id]
			if !seen {
				m = &merged{
					rec:        cand,
					strategies: map[Type]bool{cand.Type: true},
					reasons:    make(map[string]bool, len(cand.Reasons)),
				}
				m.rec.Reasons = make([]string, 0, len(cand.Reasons))
				for _, r := range cand.Reasons {
					if !m.reasons[r] {
						m.reasons[r] = true
						m.rec.Reasons = append(m.rec.Reasons, r)
					}
				}
				byBook[id] = m
				order = append(order, id)
				continue
			}

			if m.strategies[cand.Type] {
				continue
			}
			m.strategies[cand.Type] = true

			m.rec.Score = max(m.rec.Score, cand.Score) + boost
			if m.rec.Score > 100 {
				m.rec.Score = 100
			}
			for _, r := range cand.Reasons {
				if !m.reasons[r] {
					m.reasons[r] = true
					m.rec.Reasons = append(m.rec.Reasons, r)
				}
			}
			m.rec.Explanation = explainCombined(len(m.strategies))
		}
	}

	out := make([]BookRecommendation, 0, len(order))
	for _, id := range order {
		out = append(out, byBook[id].rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
