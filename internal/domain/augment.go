package domain

import (
	"cmp"
	"slices"
)

// Augment runs the location-rank, nature-rank and EMS follow-up passes over
// the full, ordered incident list of one document.
func Augment(incidents []Incident) {
	AugmentLocationRanks(incidents)
	AugmentNatureRanks(incidents)
	AugmentEMSFollowup(incidents)
}

// AugmentLocationRanks sets LocationRank from how often each address occurs.
//
// Ranks are cumulative: three addresses seen once each rank 1, 2 and 3; an
// address seen three times and another seen once rank 1 and 4.
func AugmentLocationRanks(incidents []Incident) {
	ranks := cumulativeRanks(incidents, func(inc Incident) string { return inc.Address })
	for i := range incidents {
		incidents[i].LocationRank = rankOf(ranks, incidents[i].Address)
	}
}

// AugmentNatureRanks sets NatureRank the same way, grouped by nature.
func AugmentNatureRanks(incidents []Incident) {
	ranks := cumulativeRanks(incidents, func(inc Incident) string { return inc.Nature })
	for i := range incidents {
		incidents[i].NatureRank = rankOf(ranks, incidents[i].Nature)
	}
}

// AugmentEMSFollowup flags EMS incidents and incidents followed within two
// positions by an EMS entry at the same time and address.
func AugmentEMSFollowup(incidents []Incident) {
	for i := range incidents {
		incidents[i].EMSFollowup = emsFollowup(incidents, i)
	}
}

func emsFollowup(incidents []Incident, i int) bool {
	cur := incidents[i]
	if cur.AgencyCode == AgencyEMS {
		return true
	}
	for j := i + 1; j <= i+2 && j < len(incidents); j++ {
		next := incidents[j]
		if next.AgencyCode == AgencyEMS && next.Time == cur.Time && next.Address == cur.Address {
			return true
		}
	}
	return false
}

type rankGroup struct {
	key   string
	count int
}

// cumulativeRanks orders groups by (count desc, key asc) and gives each group
// the 1-based position of its first member in that layout.
func cumulativeRanks(incidents []Incident, key func(Incident) string) map[string]int {
	counts := make(map[string]int)
	for _, inc := range incidents {
		counts[key(inc)]++
	}

	groups := make([]rankGroup, 0, len(counts))
	for k, n := range counts {
		groups = append(groups, rankGroup{key: k, count: n})
	}
	slices.SortFunc(groups, func(a, b rankGroup) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})

	ranks := make(map[string]int, len(groups))
	pos := 1
	for _, g := range groups {
		ranks[g.key] = pos
		pos += g.count
	}
	return ranks
}

func rankOf(ranks map[string]int, key string) int {
	if r, ok := ranks[key]; ok {
		return r
	}
	return DefaultRank
}
