package classify

import (
	"math/rand/v2"
	"slices"

	"github.com/veilletech/triage-cli/internal/model"
)

// DefaultSeed is the sampling seed used when the configuration leaves it
// unset, so repeated runs over the same dataset pick the same records.
const DefaultSeed uint64 = 42

// Sampler selects which records the expensive stage classifies. Claim
// records are always escalated; the rest of the target is filled evenly
// across the sentiment categories seen by the cheap stages, then topped up
// uniformly at random. Selection is a pure function of the inputs and the
// seed.
type Sampler struct {
	seed uint64
}

// NewSampler returns a Sampler drawing from a PCG stream seeded with seed.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &Sampler{seed: seed}
}

// Select returns the sorted indices of the records to escalate, at least n
// of them when n records carry no claim flag. cheap holds the combined
// cheap-stage results, one per record: the claim flag from the pattern
// pass and the sentiment from the lexicon pass. Claim records are included
// unconditionally, so the result may exceed n.
func (s *Sampler) Select(cheap []model.PartialResult, n int) []int {
	if len(cheap) == 0 || n <= 0 {
		return nil
	}
	if n > len(cheap) {
		n = len(cheap)
	}

	rng := rand.New(rand.NewPCG(s.seed, s.seed))
	picked := make([]bool, len(cheap))
	selected := make([]int, 0, n)

	// Priority 1: every claim, even past the target.
	for i, r := range cheap {
		if r.Claim == model.ClaimYes {
			selected = append(selected, i)
			picked[i] = true
		}
	}

	// Priority 2: an even share per sentiment category, drawn without
	// replacement from each category's shuffled pool.
	if remaining := n - len(selected); remaining > 0 {
		pools := make(map[model.Sentiment][]int)
		for i, r := range cheap {
			if !picked[i] {
				pools[r.Sentiment] = append(pools[r.Sentiment], i)
			}
		}
		categories := make([]model.Sentiment, 0, len(pools))
		for sentiment := range pools {
			categories = append(categories, sentiment)
		}
		slices.Sort(categories)

		if len(categories) > 0 {
			share := remaining / len(categories)
			for _, sentiment := range categories {
				pool := pools[sentiment]
				rng.Shuffle(len(pool), func(i, j int) {
					pool[i], pool[j] = pool[j], pool[i]
				})
				take := min(share, len(pool))
				for _, idx := range pool[:take] {
					selected = append(selected, idx)
					picked[idx] = true
				}
			}
		}
	}

	// Priority 3: uniform random fill from whatever remains.
	if remaining := n - len(selected); remaining > 0 {
		rest := make([]int, 0, len(cheap)-len(selected))
		for i := range cheap {
			if !picked[i] {
				rest = append(rest, i)
			}
		}
		rng.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
		take := min(remaining, len(rest))
		selected = append(selected, rest[:take]...)
	}

	slices.Sort(selected)
	return selected
}
