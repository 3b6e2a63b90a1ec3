// Package phonetic provides phonetic transcription of tokens for learners.
// Chinese is transcribed to tone-numbered pinyin with go-pinyin; runs of
// non-Han characters are passed through unchanged.
package phonetic
