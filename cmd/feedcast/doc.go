// Package main hosts the Feedcast CLI entrypoint and command graph.
//
// The Cobra-based command tree covers the foreground daemon, one-shot
// collection and generation runs, item search, episode listings, retention
// cleanup, and configuration scaffolding. It centralizes configuration
// resolution and logger setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
