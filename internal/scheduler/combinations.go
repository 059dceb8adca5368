package scheduler

import (
	"sort"

	"github.com/louiscollinsjr/getWork-run/internal/model"
)

// Enumerate expands the configured search terms, locations and sources into
// the full list of combinations for one run. Within each (term, location)
// pair, sources come in ascending priority order. The ordering is
// deterministic for identical configuration.
func Enumerate(terms, locations []string, sources []model.Source) []model.Combination {
	ranked := make([]model.Source, len(sources))
	copy(ranked, sources)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority < ranked[j].Priority
	})

	combos := make([]model.Combination, 0, len(terms)*len(locations)*len(ranked))
	for _, term := range terms {
		for _, location := range locations {
			for _, src := range ranked {
				combos = append(combos, model.Combination{
					Source:   src,
					Term:     term,
					Location: location,
				})
			}
		}
	}
	return combos
}
