package config

const (
	defaultManifestPath       = "models.yaml"
	defaultStateDir           = "~/.local/share/modelfarm"
	defaultResolverAttempts   = 10
	defaultResolverBackoff    = 30
	defaultIndexBackend       = IndexScanCache
	defaultScanCommand        = "huggingface-cli"
	defaultFetchEndpoint      = "https://huggingface.co"
	defaultFetchTimeout       = 0
	defaultFetchRetryDelay    = 5
	defaultFetchUserAgent     = "modelfarm/dev"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLedgerEnabled      = true
	defaultProgressEnabled    = true
	defaultHistoryListLimit   = 20
	defaultLedgerRetain       = 200
	maxResolverAttempts       = 1000
	maxResolverBackoffSeconds = 3600
)

// Index backends understood by the cache resolver.
const (
	IndexScanCache = "scan-cache"
	IndexSnapshots = "snapshots"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Manifest: defaultManifestPath,
			StateDir: defaultStateDir,
		},
		Resolver: Resolver{
			Attempts:       defaultResolverAttempts,
			BackoffSeconds: defaultResolverBackoff,
			Index:          defaultIndexBackend,
			ScanCommand:    defaultScanCommand,
		},
		Fetch: Fetch{
			Endpoint:          defaultFetchEndpoint,
			TimeoutSeconds:    defaultFetchTimeout,
			RetryDelaySeconds: defaultFetchRetryDelay,
			UserAgent:         defaultFetchUserAgent,
			Progress:          defaultProgressEnabled,
		},
		Ledger: Ledger{
			Enabled:      defaultLedgerEnabled,
			HistoryLimit: defaultHistoryListLimit,
			Retain:       defaultLedgerRetain,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
