package retrieval

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aman-cerp/kbcore/internal/embed"
	"github.com/aman-cerp/kbcore/internal/kberrors"
	"github.com/aman-cerp/kbcore/internal/store"
)

// Config controls an Engine's default and maximum result sizes.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	RRFConstant  int
}

func DefaultConfig() Config {
	return Config{DefaultLimit: 10, MaxLimit: 100, RRFConstant: DefaultRRFConstant}
}

// Engine runs vector, keyword, hybrid, and MMR-diversified searches
// against one project's backend. State (backend/embedder) is protected by
// a RWMutex using the snapshot pattern: a search takes a brief read lock
// only to copy the current backend/embedder pointers, then releases it
// before issuing any backend I/O or scoring, so a concurrent backend swap
// never blocks in-flight searches and never races with them.
type Engine struct {
	mu         sync.RWMutex
	backend    store.Backend
	embedder   embed.Embedder
	config     Config
	fusion     *RRFFusion
	classifier Classifier
}

// EngineOption configures optional Engine behavior at construction time.
type EngineOption func(*Engine)

// WithClassifier installs a Classifier consulted whenever a caller passes
// AutoWeights to SearchHybrid. Disabled (nil) by default, in
// which case AutoWeights resolves to DefaultWeights().
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

func NewEngine(backend store.Backend, embedder embed.Embedder, config Config, opts ...EngineOption) *Engine {
	if config.RRFConstant <= 0 {
		config.RRFConstant = DefaultRRFConstant
	}
	e := &Engine{
		backend:  backend,
		embedder: embedder,
		config:   config,
		fusion:   &RRFFusion{K: config.RRFConstant},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetBackend swaps the active backend, e.g. after a reindex. Safe to call
// concurrently with in-flight searches.
func (e *Engine) SetBackend(backend store.Backend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backend = backend
}

func (e *Engine) snapshot() (store.Backend, embed.Embedder) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backend, e.embedder
}

// resolveWeights returns weights unchanged unless it is the AutoWeights
// sentinel, in which case it consults e.classifier (falling back to
// DefaultWeights() if none is configured or classification errors).
func (e *Engine) resolveWeights(ctx context.Context, query string, weights Weights) Weights {
	if weights.Alpha >= 0 {
		return weights
	}
	if e.classifier == nil {
		return DefaultWeights()
	}
	_, resolved, err := e.classifier.Classify(ctx, query)
	if err != nil {
		return DefaultWeights()
	}
	return resolved
}

func (e *Engine) resolveLimit(topK int) int {
	if topK <= 0 {
		return e.config.DefaultLimit
	}
	if topK > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return topK
}

func normalizeQuery(queryText string) (string, error) {
	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return "", kberrors.New(kberrors.InvalidArgument, "query text is empty", nil)
	}
	return trimmed, nil
}

// validateWeights rejects an explicit (non-AutoWeights) alpha outside
// [0,1]; AutoWeights' Alpha=-1 sentinel is left for resolveWeights.
func validateWeights(weights Weights) error {
	if weights.Alpha == AutoWeights.Alpha {
		return nil
	}
	if weights.Alpha < 0 || weights.Alpha > 1 {
		return kberrors.New(kberrors.InvalidArgument, "alpha must be between 0 and 1", nil)
	}
	return nil
}

// validateLambda rejects an MMR lambda outside [0,1].
func validateLambda(lambda float64) error {
	if lambda < 0 || lambda > 1 {
		return kberrors.New(kberrors.InvalidArgument, "lambda must be between 0 and 1", nil)
	}
	return nil
}

// SearchVector embeds queryText and returns the topK nearest records by
// cosine similarity.
func (e *Engine) SearchVector(ctx context.Context, queryText string, topK int) ([]store.Result, error) {
	query, err := normalizeQuery(queryText)
	if err != nil {
		return nil, err
	}
	backend, embedder := e.snapshot()
	if backend == nil || embedder == nil {
		return nil, kberrors.New(kberrors.NotReady, "retrieval engine has no backend configured", nil)
	}

	embedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, kberrors.New(kberrors.Internal, "embed query", err)
	}

	limit := e.resolveLimit(topK)
	return retryBackend(ctx, func() ([]store.Result, error) {
		return backend.QueryVector(ctx, embedding, limit)
	})
}

// SearchKeyword returns the topK best BM25 matches for queryText.
func (e *Engine) SearchKeyword(ctx context.Context, queryText string, topK int) ([]store.Result, error) {
	query, err := normalizeQuery(queryText)
	if err != nil {
		return nil, err
	}
	backend, _ := e.snapshot()
	if backend == nil {
		return nil, kberrors.New(kberrors.NotReady, "retrieval engine has no backend configured", nil)
	}

	limit := e.resolveLimit(topK)
	return retryBackend(ctx, func() ([]store.Result, error) {
		return backend.QueryKeyword(ctx, query, limit)
	})
}

// SearchHybrid runs vector and keyword search in parallel and fuses the
// two result lists with Reciprocal Rank Fusion. If the backend exposes a
// native QueryHybrid path, that is preferred and RRF is skipped. Pass
// AutoWeights for weights to let the configured Classifier pick alpha;
// any other Weights value is used verbatim.
func (e *Engine) SearchHybrid(ctx context.Context, queryText string, topK int, weights Weights) ([]FusedResult, error) {
	query, err := normalizeQuery(queryText)
	if err != nil {
		return nil, err
	}
	if err := validateWeights(weights); err != nil {
		return nil, err
	}
	backend, embedder := e.snapshot()
	if backend == nil || embedder == nil {
		return nil, kberrors.New(kberrors.NotReady, "retrieval engine has no backend configured", nil)
	}

	weights = e.resolveWeights(ctx, query, weights)
	limit := e.resolveLimit(topK)

	embedding, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, kberrors.New(kberrors.Internal, "embed query", err)
	}

	if native, err := backend.QueryHybrid(ctx, embedding, query, limit); err == nil {
		return toFusedResults(native), nil
	} else if err != store.ErrHybridUnsupported {
		return nil, kberrors.New(kberrors.BackendUnavailable, "native hybrid query", err)
	}

	var vecResults, keywordResults []store.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecResults, err = backend.QueryVector(gctx, embedding, limit)
		return err
	})
	g.Go(func() error {
		var err error
		keywordResults, err = backend.QueryKeyword(gctx, query, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, kberrors.New(kberrors.BackendUnavailable, "hybrid search", err)
	}

	fused := e.fusion.Fuse(vecResults, keywordResults, weights, limit)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused, nil
}

// SearchWithMMR fetches fetchK hybrid candidates, embeds each candidate's
// text, and greedily reorders the top topK by Maximal Marginal Relevance
// to reduce redundancy among near-duplicate results.
func (e *Engine) SearchWithMMR(ctx context.Context, queryText string, topK, fetchK int, lambda float64) ([]FusedResult, error) {
	if err := validateLambda(lambda); err != nil {
		return nil, err
	}
	if fetchK < topK {
		fetchK = topK
	}

	fused, err := e.SearchHybrid(ctx, queryText, fetchK, DefaultWeights())
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return fused, nil
	}

	_, embedder := e.snapshot()
	queryEmbedding, err := embedder.Embed(ctx, strings.TrimSpace(queryText))
	if err != nil {
		return nil, kberrors.New(kberrors.Internal, "embed query for mmr", err)
	}

	byID := make(map[string]FusedResult, len(fused))
	candidates := make([]MMRCandidate, 0, len(fused))
	for _, fr := range fused {
		vec, err := embedder.Embed(ctx, fr.Text)
		if err != nil {
			continue
		}
		byID[fr.ID] = fr
		candidates = append(candidates, MMRCandidate{
			ID:        fr.ID,
			Vector:    vec,
			Relevance: cosineSimilarity(queryEmbedding, vec),
		})
	}

	selected := SelectMMR(candidates, lambda, topK)
	results := make([]FusedResult, 0, len(selected))
	for _, s := range selected {
		results = append(results, byID[s.ID])
	}
	return results, nil
}

func toFusedResults(results []store.Result) []FusedResult {
	out := make([]FusedResult, len(results))
	for i, r := range results {
		out[i] = FusedResult{
			ID:           r.ID,
			Score:        maxFloat(r.VecScore, r.BM25Score),
			Text:         r.Text,
			Metadata:     r.Metadata,
			VecScore:     r.VecScore,
			KeywordScore: r.BM25Score,
			MatchedTerms: r.MatchedTerms,
		}
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// retryBackend retries a failed backend call once after 100ms. Every
// backend error is treated as transient: it is wrapped as a retryable
// BackendUnavailable error, per the engine's failure semantics.
func retryBackend(ctx context.Context, fn func() ([]store.Result, error)) ([]store.Result, error) {
	return kberrors.RetryWithResult(ctx, kberrors.DefaultRetryConfig(), func() ([]store.Result, error) {
		results, err := fn()
		if err != nil {
			return nil, kberrors.New(kberrors.BackendUnavailable, "backend query", err).WithRetryable(true)
		}
		return results, nil
	})
}
