package cmd

import (
	"context"
	"path/filepath"

	"github.com/aman-cerp/kbcore/internal/config"
	"github.com/aman-cerp/kbcore/internal/embed"
	"github.com/aman-cerp/kbcore/internal/metrics"
	"github.com/aman-cerp/kbcore/internal/project"
	"github.com/aman-cerp/kbcore/internal/ratelimit"
	"github.com/aman-cerp/kbcore/internal/store"
)

// projectsFile is where the project registry's metadata rows persist,
// relative to Storage.DataDir. Documents and API keys persist through
// their own per-project stores, not through this file.
const projectsFile = "projects.json"

// application bundles everything a subcommand needs: the loaded config,
// the project manager, and the rate limiter/metrics registry that sit at
// the boundary a thin HTTP handler would otherwise own. One instance is
// built in the root command's PersistentPreRunE and shared by every
// subcommand for the life of the process.
type application struct {
	cfg      *config.Config
	manager  *project.Manager
	limiter  *ratelimit.Limiter
	registry *metrics.Registry
}

// newApplication wires a Manager with backend/embedder factories chosen
// from cfg and returns the shared boundary state. No real embedding
// provider ships with this core (spec's Embedder is supplied by the
// host); the deterministic embedder is the dependency-free default, the
// same role the teacher's --offline static embeddings flag plays.
//
// Project metadata persisted by a previous run (see persist) is not
// restored here: Manager.LoadMetadata only parses rows back out of the
// file, it does not re-open a row's backend/cache/key store or
// re-register it as a live entry, and the manager has no such restore
// path. Operators recreate projects with `kbcored project create` after
// a restart; `kbcored project import` is the place a restore path would
// go if this ever grows one.
func newApplication(cfg *config.Config) (*application, error) {
	backendFactory := func(_ context.Context, collectionName string, _ int) (store.Backend, error) {
		switch cfg.Storage.Backend {
		case "relational":
			path := filepath.Join(cfg.Storage.DataDir, "collections", collectionName+".db")
			return store.NewRelationalBackend(path)
		default:
			return store.NewEmbeddedBackend(), nil
		}
	}

	embedderFactory := func(_ string) (embed.Embedder, error) {
		return embed.NewDeterministicEmbedder(), nil
	}

	queryConfig := project.QueryConfig{
		SemanticCacheSize:      cfg.Cache.SemanticCacheSize,
		SemanticCacheTTL:       cfg.Cache.SemanticCacheTTL,
		SemanticCacheThreshold: cfg.Cache.SemanticCacheThreshold,
	}
	manager := project.NewManager(backendFactory, embedderFactory, cfg.Cache.EmbeddingCacheSize, queryConfig)

	return &application{
		cfg:      cfg,
		manager:  manager,
		limiter:  ratelimit.New(defaultRateLimitWindows(cfg)),
		registry: metrics.New(),
	}, nil
}

// persist writes the project registry's metadata rows back to
// Storage.DataDir. See newApplication's doc comment: this is not
// automatically reloaded on the next startup.
func (a *application) persist() error {
	return a.manager.Persist(filepath.Join(a.cfg.Storage.DataDir, projectsFile))
}

// defaultRateLimitWindows converts the config's requests-per-minute ints
// into the ratelimit package's Window shape.
func defaultRateLimitWindows(cfg *config.Config) map[ratelimit.Operation]ratelimit.Window {
	windows := ratelimit.DefaultWindows()
	minute := windows[ratelimit.OpCreateProject].Period

	override := func(op ratelimit.Operation, perMinute int) {
		if perMinute > 0 {
			windows[op] = ratelimit.Window{Limit: perMinute, Period: minute}
		}
	}
	override(ratelimit.OpCreateProject, cfg.RateLimit.CreatePerMinute)
	override(ratelimit.OpListProjects, cfg.RateLimit.ListPerMinute)
	override(ratelimit.OpQuery, cfg.RateLimit.QueryPerMinute)
	override(ratelimit.OpIngest, cfg.RateLimit.IngestPerMinute)
	return windows
}
