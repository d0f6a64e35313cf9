package workflow

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"modelfarm/internal/cacheindex"
	"modelfarm/internal/config"
	"modelfarm/internal/credential"
	"modelfarm/internal/deps"
	"modelfarm/internal/fetch"
	"modelfarm/internal/ledger"
	"modelfarm/internal/logging"
)

// Manager coordinates fetching, resolving, and linking for one manifest.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	fetcher  fetch.Fetcher
	resolver *cacheindex.Resolver
	ledger   *ledger.Store
	lookup   credential.LookupFunc
	now      func() time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithFetcher replaces the hub client built from settings.
func WithFetcher(f fetch.Fetcher) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.fetcher = f
		}
	}
}

// WithResolver replaces the cache resolver built from settings.
func WithResolver(r *cacheindex.Resolver) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.resolver = r
		}
	}
}

// WithLedger records runs in store. The caller owns the store.
func WithLedger(store *ledger.Store) ManagerOption {
	return func(m *Manager) {
		m.ledger = store
	}
}

// WithLookup overrides how token references are resolved (used in tests).
func WithLookup(lookup credential.LookupFunc) ManagerOption {
	return func(m *Manager) {
		m.lookup = lookup
	}
}

// WithClock overrides the time source used for run records.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a manager whose fetcher and resolver follow cfg.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fetcher == nil {
		m.fetcher = newHubClient(cfg, logger)
	}
	if m.resolver == nil {
		m.resolver = newResolver(cfg, logger)
	}
	return m
}

func newHubClient(cfg *config.Config, logger *slog.Logger) *fetch.HubClient {
	opts := []fetch.Option{
		fetch.WithEndpoint(cfg.Fetch.Endpoint),
		fetch.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout()}),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithRetryDelay(cfg.FetchRetryDelay()),
		fetch.WithLogger(logger),
	}
	if cfg.Fetch.Progress {
		opts = append(opts, fetch.WithProgress(fetch.NewProgress(os.Stderr, logger)))
	}
	return fetch.NewHubClient(opts...)
}

func newResolver(cfg *config.Config, logger *slog.Logger) *cacheindex.Resolver {
	var indexer cacheindex.Indexer = cacheindex.SnapshotIndexer{}
	if cfg.Resolver.Index == config.IndexScanCache {
		indexer = cacheindex.NewScanCacheIndexer(
			cacheindex.WithBinary(deps.ResolveCacheTool(cfg.Resolver.ScanCommand)),
		)
	}
	r := cacheindex.NewResolver(indexer, logger)
	r.Attempts = cfg.Resolver.Attempts
	r.Backoff = cfg.ResolverBackoff()
	return r
}

func (m *Manager) token(ref string) (credential.Token, error) {
	return credential.Resolve(ref, m.lookup)
}
