package retrieval

import "math"

// MMRCandidate is a scored document eligible for MMR diversification. It
// must carry the embedding it was originally scored against so pairwise
// similarity can be computed during the greedy selection.
type MMRCandidate struct {
	ID        string
	Vector    []float32
	Relevance float64 // similarity to the query, sim(d, q)
}

// SelectMMR greedily selects up to topK candidates maximizing:
//
//	argmax[ lambda*sim(d,q) - (1-lambda)*max_{s in S} sim(d,s) ]
//
// The first pick is always argmax sim(d,q). Selection stops once topK
// candidates have been chosen or candidates are exhausted.
func SelectMMR(candidates []MMRCandidate, lambda float64, topK int) []MMRCandidate {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	remaining := make([]MMRCandidate, len(candidates))
	copy(remaining, candidates)

	selected := make([]MMRCandidate, 0, topK)

	firstIdx := 0
	for i := 1; i < len(remaining); i++ {
		if remaining[i].Relevance > remaining[firstIdx].Relevance {
			firstIdx = i
		}
	}
	selected = append(selected, remaining[firstIdx])
	remaining = append(remaining[:firstIdx], remaining[firstIdx+1:]...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				sim := cosineSimilarity(cand.Vector, s.Vector)
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*cand.Relevance - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
