// Package fdic implements the connector for the FDIC Enforcement
// Decisions & Orders database. Discovery pages through orders issued
// since the requested time; each order is fetched individually by its
// order number.
package fdic
