// Package stage defines the ordered lifecycle stages an item moves
// through, from initial collection to rendered audio, and the rules for
// advancing between them.
package stage
