// Package models lists the OpenAI models available to an API key, split
// into chat models usable by the annotation stages and TTS models usable
// by the audio engine.
package models
