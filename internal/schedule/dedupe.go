package schedule

import "poolcal/internal/model"

// Dedupe drops facts whose (category, weekday, start, end, pool) key was
// already seen, keeping the first occurrence and the input order.
func Dedupe(facts []model.ScheduleFact) []model.ScheduleFact {
	seen := make(map[model.FactKey]struct{}, len(facts))
	out := make([]model.ScheduleFact, 0, len(facts))
	for _, f := range facts {
		k := f.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}
