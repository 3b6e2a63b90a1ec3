package compiler

import (
	"net/url"
	"strings"

	"github.com/mannyrayner/C-LARA-2/internal"
)

// maxSlugLen keeps concordance file names under the common 255-byte limit.
const maxSlugLen = 200

// Slug percent-encodes every byte of lemma outside [A-Za-z0-9_.~-] so the
// result is safe in file names and URLs on every platform. Lemmas with ASCII
// capitals, or whose encoding exceeds maxSlugLen, get a "-" and a short
// blake3 suffix so "Cat" and "cat" stay apart on case-insensitive file
// systems and long CJK lemmas still fit.
func Slug(lemma string) string {
	encoded := percentEncode(lemma)
	if len(encoded) <= maxSlugLen && !hasUpperASCII(lemma) {
		return encoded
	}
	return truncateEncoded(encoded, maxSlugLen) + "-" + internal.ContentHash(lemma)[:10]
}

// truncateEncoded cuts s to at most n bytes without splitting a %XX escape.
func truncateEncoded(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	if i := strings.LastIndexByte(s, '%'); i >= 0 && i > len(s)-3 {
		s = s[:i]
	}
	return s
}

func hasUpperASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			return true
		}
	}
	return false
}

func percentEncode(lemma string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(lemma); i++ {
		c := lemma[i]
		if isSlugSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isSlugSafe(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '_' || c == '.' || c == '~' || c == '-'
}

// ConcordanceFile returns the file name of the concordance page for lemma.
func ConcordanceFile(lemma string) string {
	return "concordance_" + Slug(lemma) + ".html"
}

// fileURL turns a file name that may contain '%' into a relative URL that
// resolves back to that exact file.
func fileURL(name string) string {
	return url.PathEscape(name)
}
