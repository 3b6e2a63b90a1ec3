// Package audio synthesizes speech for tokens, segments and pages and keeps
// the results in a content-addressed cache.
//
// Engines implement a single SynthesizeToPath contract. The offline engine
// writes a deterministic tone so runs are reproducible without network
// access; the OpenAI and espeak-ng engines produce real speech. A
// FallbackEngine retries a failed or invalid synthesis once with a second
// engine.
//
// Cache files are named by the blake3 hash of a key built from the level,
// language, voice and normalized text. A file that already exists is never
// synthesized again, so concurrent runs sharing a cache need no locking.
package audio
