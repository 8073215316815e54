// Package voice turns a two-host dialogue script into podcast audio via an
// OpenAI-compatible speech API, one segment per speaker turn.
package voice
