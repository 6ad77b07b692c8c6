// Package domain defines the core business entities for bankwatch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Event: A canonical reputation-damaging incident
//   - Institution: A resolved, deduplicated bank entity
//   - RawRecord: A source-specific payload from a connector
//   - RunResult: The outcome of one connector collection run
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
