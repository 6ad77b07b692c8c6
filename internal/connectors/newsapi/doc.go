// Package newsapi implements the connector for the NewsAPI.org
// "everything" endpoint. Articles are discovered by querying for the
// configured watchlist of institution names; the source assigns no
// stable identifiers, so downstream identity falls back to content
// fingerprints.
package newsapi
