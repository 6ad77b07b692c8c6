// Package connectors provides implementations of the Connector
// interface for the reputation-event sources. Each connector knows how
// to discover and fetch raw records from one source (FDIC enforcement
// decisions, news APIs); parse and paging mechanics stay inside the
// connector.
//
// Connectors are constructed from configuration at startup and handed
// to the collection orchestrator.
package connectors
