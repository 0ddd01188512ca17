// Package retrieval implements the hybrid search engine: vector search,
// keyword search, Reciprocal Rank Fusion of the two, and MMR diversification
// over a fused candidate list.
package retrieval

import (
	"sort"

	"github.com/aman-cerp/kbcore/internal/store"
)

// DefaultRRFConstant is the k_rrf smoothing constant from the fusion
// formula, empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.)
const DefaultRRFConstant = 60

// Weights controls the blend between vector and keyword contributions in
// RRF fusion: Alpha weights the vector rank term, (1-Alpha) the keyword
// rank term.
type Weights struct {
	Alpha float64
}

// DefaultWeights blends vector and keyword contributions evenly.
func DefaultWeights() Weights { return Weights{Alpha: 0.5} }

// FusedResult is a single document after RRF fusion of a vector result
// list and a keyword result list.
type FusedResult struct {
	ID           string
	Score        float64 // combined RRF score
	Text         string
	Metadata     map[string]string
	VecScore     float64
	VecRank      int // 1-indexed, 0 if absent from the vector list
	KeywordScore float64
	KeywordRank  int // 1-indexed, 0 if absent from the keyword list
	InBoth       bool
	MatchedTerms []string
}

// RRFFusion implements:
//
//	RRF(d) = alpha * 1/(k_rrf + r_v(d)) + (1-alpha) * 1/(k_rrf + r_k(d))
//
// where r_v/r_k are 1-indexed positions in the vector/keyword result lists,
// or a missing-rank sentinel of N+1000 (N = max(20, topK)) when a document
// is absent from one of the two lists.
type RRFFusion struct {
	K int
}

func NewRRFFusion() *RRFFusion { return &RRFFusion{K: DefaultRRFConstant} }

// Fuse combines vecResults and keywordResults, in list order (the order
// each backend already ranked them), into a single RRF-scored, sorted
// slice. topK is used only to compute the missing-rank sentinel per
// spec's N = max(20, topK); callers still need to truncate the result.
func (f *RRFFusion) Fuse(vecResults, keywordResults []store.Result, weights Weights, topK int) []FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	n := topK
	if n < 20 {
		n = 20
	}
	missingRank := n + 1000

	byID := make(map[string]*FusedResult, len(vecResults)+len(keywordResults))

	get := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ID: id}
		byID[id] = r
		return r
	}

	for i, r := range vecResults {
		fr := get(r.ID)
		fr.Text = r.Text
		fr.Metadata = r.Metadata
		fr.VecScore = r.VecScore
		fr.VecRank = i + 1
	}
	for i, r := range keywordResults {
		fr := get(r.ID)
		if fr.Text == "" {
			fr.Text = r.Text
		}
		if fr.Metadata == nil {
			fr.Metadata = r.Metadata
		}
		fr.KeywordScore = r.BM25Score
		fr.KeywordRank = i + 1
		fr.MatchedTerms = r.MatchedTerms
	}

	results := make([]FusedResult, 0, len(byID))
	for _, fr := range byID {
		rv := fr.VecRank
		if rv == 0 {
			rv = missingRank
		}
		rk := fr.KeywordRank
		if rk == 0 {
			rk = missingRank
		}
		fr.InBoth = fr.VecRank > 0 && fr.KeywordRank > 0
		fr.Score = weights.Alpha/float64(k+rv) + (1-weights.Alpha)/float64(k+rk)
		results = append(results, *fr)
	}

	sort.Slice(results, func(i, j int) bool {
		return less(results[i], results[j])
	})
	return results
}

// less implements the tie-break order: higher RRF score first; on a tie,
// smaller vector rank first; then smaller keyword rank; then
// lexicographically smaller ID.
func less(a, b FusedResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	ra, rb := effectiveRank(a.VecRank), effectiveRank(b.VecRank)
	if ra != rb {
		return ra < rb
	}
	ka, kb := effectiveRank(a.KeywordRank), effectiveRank(b.KeywordRank)
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

func effectiveRank(rank int) int {
	if rank == 0 {
		return int(^uint(0) >> 1) // missing ranks sort last
	}
	return rank
}
