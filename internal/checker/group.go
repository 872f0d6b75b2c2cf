package checker

import (
	"fmt"
	"sort"

	"market_bot/internal/filter"
	"market_bot/internal/model"
)

// group is one search shared by every watch with the same platform, keyword and filters.
type group struct {
	platform string
	keyword  string
	filters  string
	watches  []model.Watch
}

func (g group) String() string {
	if g.filters == "" {
		return g.platform + ":" + g.keyword
	}
	return fmt.Sprintf("%s:%s %s", g.platform, g.keyword, g.filters)
}

func (g group) filterSet() (filter.Set, error) {
	fs, err := filter.Decode(g.platform, g.filters)
	if err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	return fs, nil
}

// groupWatches partitions watches by search key. Filter blobs are re-encoded so
// equivalent sets land in the same group. Output order is deterministic.
func groupWatches(watches []model.Watch) []group {
	type key struct{ platform, keyword, filters string }

	index := make(map[key]int)
	var groups []group
	for _, w := range watches {
		k := key{
			platform: w.Platform,
			keyword:  model.NormalizeKeyword(w.Keyword),
			filters:  filter.Canonical(w.Platform, w.Filters),
		}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, group{platform: k.platform, keyword: k.keyword, filters: k.filters})
		}
		groups[i].watches = append(groups[i].watches, w)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.platform != b.platform {
			return a.platform < b.platform
		}
		if a.keyword != b.keyword {
			return a.keyword < b.keyword
		}
		return a.filters < b.filters
	})
	return groups
}
