package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aman-cerp/kbcore/internal/ratelimit"
	"github.com/aman-cerp/kbcore/internal/retrieval"
)

func newQueryCmd() *cobra.Command {
	var mode string
	var topK int
	var alpha float64
	var expand bool
	var skipCache bool

	cmd := &cobra.Command{
		Use:   "query <project-id> <text>",
		Short: "Run a vector, keyword, hybrid, or MMR-diversified search",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], args[1], mode, topK, alpha, expand, skipCache)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "Search mode: vector, keyword, hybrid, mmr")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of results (default from config)")
	cmd.Flags().Float64Var(&alpha, "alpha", -1, "Fixed vector/keyword fusion weight (0-1); unset lets the classifier choose")
	cmd.Flags().BoolVar(&expand, "expand", true, "Expand acronyms/synonyms in the query before searching")
	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Bypass the semantic result cache")
	return cmd
}

func runQuery(cmd *cobra.Command, projectID, queryText, mode string, topK int, alpha float64, expand, skipCache bool) error {
	app := currentApp
	if err := app.limiter.Allow(ratelimit.OpQuery, projectID); err != nil {
		return err
	}
	if topK <= 0 {
		topK = app.cfg.Search.MaxResults
	}

	text := queryText
	if expand {
		expander, err := app.manager.GetProjectExpander(projectID)
		if err != nil {
			return err
		}
		expandStart := time.Now()
		text = expander.Expand(queryText)
		app.registry.RecordQueryExpansion(time.Since(expandStart))
	}

	embedder, err := app.manager.GetProjectEmbedder(projectID)
	if err != nil {
		return err
	}
	semanticCache, err := app.manager.GetProjectSemanticCache(projectID)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		app.registry.RecordError(projectID, "embed_query")
		return fmt.Errorf("embed query: %w", err)
	}

	if !skipCache {
		if cached, similarity, ok := semanticCache.Get(text, vector); ok {
			app.registry.RecordSemanticCacheHit(projectID, similarity)
			return printJSON(cmd, cached)
		}
		app.registry.RecordSemanticCacheMiss(projectID)
	}

	start := time.Now()
	results, err := searchByMode(ctx, app, projectID, mode, text, topK, alpha)
	status := "ok"
	if err != nil {
		status = "error"
		app.registry.RecordError(projectID, "query")
	}
	app.registry.RecordQuery(projectID, status, time.Since(start))
	if err != nil {
		return err
	}

	if !skipCache {
		semanticCache.Put(text, vector, results)
	}
	return printJSON(cmd, results)
}

func searchByMode(ctx context.Context, app *application, projectID, mode, text string, topK int, alpha float64) (interface{}, error) {
	engine, err := app.manager.GetProjectEngine(projectID)
	if err != nil {
		return nil, err
	}

	weights := retrieval.AutoWeights
	if alpha >= 0 {
		weights = retrieval.Weights{Alpha: alpha}
	}

	switch mode {
	case "vector":
		return engine.SearchVector(ctx, text, topK)
	case "keyword":
		return engine.SearchKeyword(ctx, text, topK)
	case "mmr":
		return engine.SearchWithMMR(ctx, text, topK, app.cfg.Search.MMRFetchK, app.cfg.Search.MMRLambda)
	default:
		return engine.SearchHybrid(ctx, text, topK, weights)
	}
}
