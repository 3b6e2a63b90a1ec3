// Package llm wraps chat-completion providers behind a single JSON-in,
// JSON-out call. The ResilientClient adds bounded retries with exponential
// backoff, a heartbeat that reports on long calls without cancelling them,
// and a circuit breaker around the provider.
package llm
