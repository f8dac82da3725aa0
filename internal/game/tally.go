package game

import (
	"math/rand"
	"sort"
)

// TallyResult is the deterministic part of a vote count: occurrences per
// distinct choice and every choice holding the maximum count, in sorted
// order. Only the tie-break draw is randomized, and that stays behind an
// injectable rng so tests can pin the outcome.
type TallyResult struct {
	Counts  map[string]int
	Winners []string
}

// Tally counts votes per distinct choice. Winners are all choices achieving
// the maximum count; with no votes there are no winners.
func Tally(votes map[string]string) TallyResult {
	counts := make(map[string]int, len(votes))
	for _, choice := range votes {
		counts[choice]++
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	var winners []string
	for choice, n := range counts {
		if n == max {
			winners = append(winners, choice)
		}
	}
	sort.Strings(winners)

	return TallyResult{Counts: counts, Winners: winners}
}

// PickWinner draws uniformly among the tied winners rather than favoring
// ballot order. It returns "" when there are no votes at all.
func (t TallyResult) PickWinner(rng *rand.Rand) string {
	if len(t.Winners) == 0 {
		return ""
	}
	return t.Winners[rng.Intn(len(t.Winners))]
}
