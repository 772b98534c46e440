// SPDX-License-Identifier: AGPL-3.0-only
package stats

import (
	"sort"

	"github.com/fluffyriot/crossfeed/internal/helpers"
	"github.com/fluffyriot/crossfeed/internal/models"
)

type DailyPoint struct {
	Date    string `json:"date"`
	Posts   int    `json:"posts"`
	Likes   int64  `json:"likes"`
	Reposts int64  `json:"reposts"`
}

type AccountStats struct {
	AccountID string       `json:"account_id"`
	Network   string       `json:"network"`
	Posts     int          `json:"posts"`
	Boosts    int          `json:"boosts"`
	Replies   int          `json:"replies"`
	Hydrated  int          `json:"hydrated_replies"`
	Points    []DailyPoint `json:"points"`
}

// GetStats summarizes a timeline per account, with one point per UTC day in
// ascending order. Engagement is counted on the displayed content, so a boost
// contributes the counts of its original.
func GetStats(posts []*models.Post) []AccountStats {
	statsMap := make(map[string]*AccountStats)
	days := make(map[string]map[string]*DailyPoint)

	for _, p := range posts {
		key := p.AccountID
		if _, ok := statsMap[key]; !ok {
			statsMap[key] = &AccountStats{
				AccountID: key,
				Network:   helpers.NetworkName(p.Platform),
				Points:    []DailyPoint{},
			}
			days[key] = make(map[string]*DailyPoint)
		}
		s := statsMap[key]
		s.Posts++

		src := p.Source()
		if p.IsBoost() {
			s.Boosts++
		}
		switch src.ParentState() {
		case models.ParentHydrated:
			s.Replies++
			s.Hydrated++
		case models.ParentPending:
			s.Replies++
		}

		date := p.CreatedAt.UTC().Format("2006-01-02")
		point, ok := days[key][date]
		if !ok {
			point = &DailyPoint{Date: date}
			days[key][date] = point
		}
		point.Posts++
		point.Likes += int64(src.Counts.Likes)
		point.Reposts += int64(src.Counts.Reposts)
	}

	result := make([]AccountStats, 0, len(statsMap))
	for key, s := range statsMap {
		for _, point := range days[key] {
			s.Points = append(s.Points, *point)
		}
		sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Date < s.Points[j].Date })
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountID < result[j].AccountID })

	return result
}
