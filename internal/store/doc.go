// Package store persists items, the run ledger, and episodes in a single
// SQLite database. Items carry their pipeline stage and are full-text
// searchable; the runs table doubles as the cross-process mutual
// exclusion gate for pipeline executions.
package store
