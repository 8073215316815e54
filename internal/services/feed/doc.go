// Package feed fetches posts from the syndication timeline endpoints.
// A Session carries the authentication cookies, resolvable from explicit
// config tokens or a cookies JSON export; additional timelines (user
// pages, searches) load from an optional YAML sources file.
package feed
