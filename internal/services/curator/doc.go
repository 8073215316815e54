// Package curator talks to an OpenRouter-compatible chat completion API to
// score collected items, pick the episode lineup, and write the dialogue
// script. Transport retries with backoff live in the client; failures cross
// the package boundary as services.ProviderError values.
package curator
