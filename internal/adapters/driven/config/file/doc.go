// Package file provides TOML-backed configuration stored in the
// bankwatch config directory (~/.bankwatch/config.toml by default).
// Unset fields fall back to defaults, so a missing or partial file is
// always valid.
package file
