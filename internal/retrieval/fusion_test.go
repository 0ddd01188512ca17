package retrieval

import (
	"testing"

	"github.com/aman-cerp/kbcore/internal/store"
)

func TestRRFFusionAlphaOneUsesOnlyVectorOrder(t *testing.T) {
	vec := []store.Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	kw := []store.Result{{ID: "c"}, {ID: "b"}, {ID: "a"}}

	f := NewRRFFusion()
	results := f.Fuse(vec, kw, Weights{Alpha: 1.0}, 10)

	if results[0].ID != "a" || results[1].ID != "b" || results[2].ID != "c" {
		t.Fatalf("expected vector order preserved at alpha=1, got %v", ids(results))
	}
}

func TestRRFFusionAlphaZeroUsesOnlyKeywordOrder(t *testing.T) {
	vec := []store.Result{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	kw := []store.Result{{ID: "c"}, {ID: "b"}, {ID: "a"}}

	f := NewRRFFusion()
	results := f.Fuse(vec, kw, Weights{Alpha: 0.0}, 10)

	if results[0].ID != "c" || results[1].ID != "b" || results[2].ID != "a" {
		t.Fatalf("expected keyword order preserved at alpha=0, got %v", ids(results))
	}
}

func TestRRFFusionMissingRankSentinel(t *testing.T) {
	vec := []store.Result{{ID: "only-vec"}}
	kw := []store.Result{{ID: "only-kw"}}

	f := NewRRFFusion()
	results := f.Fuse(vec, kw, Weights{Alpha: 0.5}, 5)

	for _, r := range results {
		if r.ID == "only-vec" && r.KeywordRank != 0 {
			t.Fatalf("expected missing keyword rank to stay 0 (sentinel applied internally), got %d", r.KeywordRank)
		}
	}
}

func TestRRFFusionRankOrderBeforeLexicographicID(t *testing.T) {
	vec := []store.Result{{ID: "z"}, {ID: "a"}}
	kw := []store.Result{{ID: "z"}, {ID: "a"}}

	f := NewRRFFusion()
	results := f.Fuse(vec, kw, Weights{Alpha: 0.5}, 10)
	if results[0].ID != "z" {
		t.Fatalf("expected rank order preserved (z has rank 1 in both lists), got %v", ids(results))
	}
}

func ids(results []FusedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
