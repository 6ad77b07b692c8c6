// Package memory provides in-memory implementations of the storage
// driven ports. Used in tests and for ephemeral runs where persistence
// across restarts is not needed.
package memory
