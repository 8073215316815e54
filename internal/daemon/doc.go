// Package daemon ties the schedulers, store, and status API together behind
// a single-instance file lock.
package daemon
