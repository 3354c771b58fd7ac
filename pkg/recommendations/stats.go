package recommendations

import (
	"math"
	"sort"
)

const (
	topTypesLimit = 3
	topBooksLimit = 10
)

// rate returns num/den as a percentage, or 0 when den is 0
func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round2(float64(num) / float64(den) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func buildUserStats(counts []TypeCounts) UserStats {
	stats := UserStats{
		RecommendationsByType: make(map[Type]int),
		TopPerformingTypes:    []TypePerformance{},
	}

	var viewed, clicked, added int
	perf := make([]TypePerformance, 0, len(counts))
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		stats.TotalRecommendations += c.Count
		stats.RecommendationsByType[c.Type] += c.Count
		viewed += c.Viewed
		clicked += c.Clicked
		added += c.Added

		perf = append(perf, TypePerformance{Type: c.Type, Count: c.Count, ViewRate: rate(c.Viewed, c.Count)})
	}

	stats.ViewRate = rate(viewed, stats.TotalRecommendations)
	stats.ClickRate = rate(clicked, viewed)
	stats.ConversionRate = rate(added, clicked)

	sort.SliceStable(perf, func(i, j int) bool {
		return perf[i].ViewRate > perf[j].ViewRate
	})
	if len(perf) > topTypesLimit {
		perf = perf[:topTypesLimit]
	}
	stats.TopPerformingTypes = append(stats.TopPerformingTypes, perf...)

	return stats
}

func buildEngagement(counts []TypeCounts) EngagementStats {
	var e EngagementStats
	for _, c := range counts {
		e.Total += c.Count
		e.Viewed += c.Viewed
		e.Clicked += c.Clicked
		e.Added += c.Added
	}
	e.ViewRate = rate(e.Viewed, e.Total)
	e.ClickRate = rate(e.Clicked, e.Viewed)
	e.ConversionRate = rate(e.Added, e.Clicked)
	return e
}

func buildTypeSummaries(counts []TypeCounts) []TypeSummary {
	summaries := make([]TypeSummary, 0, len(counts))
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		summaries = append(summaries, TypeSummary{Type: c.Type, Count: c.Count, AvgScore: round2(c.AvgScore)})
	}
	return summaries
}
