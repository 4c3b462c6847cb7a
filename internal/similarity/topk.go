package similarity

import (
	"log"
	"sort"
)

// Scored is one ranked candidate: a product ID and its cosine similarity to
// the query vector.
type Scored struct {
	ProductID string
	Score     float64
}

// TopK ranks candidates by cosine similarity to query and returns at most k
// results, descending score with product-ID-ascending tie-break so the
// ordering is fully deterministic.
//
// Candidates in exclude are never returned (the query product itself,
// out-of-stock items the caller wants suppressed). A candidate whose
// dimension does not match the query — a stale vector from an older model —
// is skipped rather than failing the whole ranking.
func TopK(query []float32, candidates map[string][]float32, k int, exclude map[string]struct{}) []Scored {
	if len(query) == 0 || k <= 0 {
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for id, vec := range candidates {
		if _, skip := exclude[id]; skip {
			continue
		}
		sim, err := Cosine(query, vec)
		if err != nil {
			log.Printf("WARNING: skipping candidate %s in similarity ranking: %v", id, err)
			continue
		}
		scored = append(scored, Scored{ProductID: id, Score: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ProductID < scored[j].ProductID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
