// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Discovers and fetches raw records from one source
//   - EventStore: Idempotent event persistence with merge-on-upsert
//   - InstitutionStore: Institution identity persistence
//   - SchedulerStore: Scheduled task persistence
//
// # Optional Interfaces
//
//   - InstitutionRegistry: Enrichment lookups against an external
//     institution registry. When nil, unresolved references fall back
//     to placeholder identities.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
