// Package scoring turns one round of rankings into a Borda-count leaderboard.
package scoring

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/promptparty-backend/internal/random"
)

// Entry is one submitter's line in a round leaderboard.
type Entry struct {
	PlayerID string `json:"player_id"`
	Rank     int    `json:"rank"`
	Points   int    `json:"points"`
	Firsts   int    `json:"firsts"`
	Seconds  int    `json:"seconds"`
	// Placements[i] counts how many voters put this submitter at position i.
	Placements []int `json:"placements"`
}

// Tally scores the rankings in ballots (voter -> ordered player ids, most
// preferred first) over the given submitters. Position i of a ranking is worth
// len(submitters)-1-i points. Entries naming a non-submitter are skipped.
//
// The result is ordered by points, then first-place count, then second-place
// count. Remaining ties are broken by a permutation drawn from seed, so equal
// inputs and seed always give the same order.
func Tally(submitters []string, ballots map[string][]string, seed int64) []Entry {
	n := len(submitters)
	if n == 0 {
		return []Entry{}
	}

	ids := slices.Clone(submitters)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	n = len(ids)

	tiebreak := make(map[string]int, n)
	for i, p := range random.New(seed).Perm(n) {
		tiebreak[ids[i]] = p
	}

	byID := make(map[string]*Entry, n)
	entries := make([]Entry, n)
	for i, id := range ids {
		entries[i] = Entry{PlayerID: id, Placements: make([]int, n)}
		byID[id] = &entries[i]
	}

	for _, ranking := range ballots {
		for pos, id := range ranking {
			e, ok := byID[id]
			if !ok || pos >= n {
				continue
			}
			e.Points += n - 1 - pos
			e.Placements[pos]++
			switch pos {
			case 0:
				e.Firsts++
			case 1:
				e.Seconds++
			}
		}
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Firsts, a.Firsts); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Seconds, a.Seconds); c != 0 {
			return c
		}
		return cmp.Compare(tiebreak[a.PlayerID], tiebreak[b.PlayerID])
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// BallotValue is the number of points one complete ranking by a submitter
// distributes in a field of n: (n-1) + (n-2) + ... + 1.
func BallotValue(n int) int {
	if n < 2 {
		return 0
	}
	return (n - 1) * n / 2
}
