package signal

import (
	"sort"

	"DCAScanner/internal/model"
)

// Scan scores every snapshot and returns the results sorted by score,
// highest first. Symbols with equal scores keep their input order.
func Scan(snapshots []model.IndicatorSnapshot) []*model.ScoreResult {
	results := make([]*model.ScoreResult, 0, len(snapshots))
	for _, s := range snapshots {
		results = append(results, ComputeSignal(s))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// FilterDCA keeps only results at or above the DCA threshold.
func FilterDCA(results []*model.ScoreResult) []*model.ScoreResult {
	var out []*model.ScoreResult
	for _, r := range results {
		if r.IsDCA {
			out = append(out, r)
		}
	}
	return out
}
