// Package scheduler drives the hourly collection ticker and the daily
// UTC-anchored generation timer, reaping stale runs before each fire.
package scheduler
