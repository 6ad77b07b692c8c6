// Package services implements the driving port interfaces.
// Services contain the core business logic - institution resolution,
// event normalisation, collection orchestration - and orchestrate
// calls to driven ports (adapters).
package services
