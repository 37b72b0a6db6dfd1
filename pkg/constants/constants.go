// Package constants provides shared constants used throughout the edimap codebase.
// This includes chunking and batching budgets, backend call limits, timeouts,
// and file permissions that should be consistent across the application.
package constants

import "time"

// Chunking constants control how a specification document is split into requests
const (
	// DefaultPagesPerChunk is the page budget of one extraction request
	DefaultPagesPerChunk = 8

	// DefaultChunkChars is the slice size used when a document has no page delimiters
	DefaultChunkChars = 8000
)

// Concurrency and batching constants
const (
	// DefaultMaxWorkers bounds concurrent backend calls in a fan-out
	DefaultMaxWorkers = 5

	// DefaultMatchBatchSize is the number of unmapped fields per semantic-match request
	DefaultMatchBatchSize = 30
)

// Backend call constants
const (
	// DefaultMaxAttempts is the number of tries per backend call, first try included
	DefaultMaxAttempts = 3

	// DefaultRetryBackoff is the fixed pause between attempts
	DefaultRetryBackoff = 2 * time.Second

	// DefaultRequestTimeout bounds a single backend request
	DefaultRequestTimeout = 120 * time.Second

	// DefaultHTTPTimeout is the client-level timeout for HTTP backends
	DefaultHTTPTimeout = 180 * time.Second

	// DefaultRateLimit is requests per second across all workers; zero disables limiting
	DefaultRateLimit = 0

	// DefaultBurst is the token bucket burst size when rate limiting is enabled
	DefaultBurst = 5

	// DefaultTemperature keeps generation close to deterministic
	DefaultTemperature = 0.1

	// DefaultMaxTokens caps the length of a backend reply
	DefaultMaxTokens = 4096
)

// Diagnostics constants
const (
	// SampleLength is the number of runes of a raw response kept in decode diagnostics
	SampleLength = 500
)

// Timeout constants
const (
	// ShutdownTimeout is the grace period for cleanup after a failed command
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Spreadsheet layout constants
const (
	// MappingSheet is the sheet holding the standard mapping and the output grid
	MappingSheet = "Mapping"

	// FlagsSheet is the output sheet listing discrepancy flags
	FlagsSheet = "Flags"
)
