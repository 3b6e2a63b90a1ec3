package audio

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// Audio levels used in cache keys.
const (
	LevelToken   = "token"
	LevelSegment = "segment"
	LevelPage    = "page"
)

// NormalizeText applies NFC, trims surrounding whitespace and lower-cases.
func NormalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(text)))
}

// CacheKey builds the cache key for one clip. An empty voice is recorded as
// "default".
func CacheKey(level, language, voice, text string) string {
	if voice == "" {
		voice = "default"
	}
	return fmt.Sprintf("%s:%s:%s:%s", level, language, voice, NormalizeText(text))
}

// CacheFilename returns the content-hash file name for key.
func CacheFilename(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".wav"
}

// Stats counts the files in a cache directory and their total size. A
// missing directory is an empty cache.
func Stats(dir string) (fileCount int, totalSize int64, err error) {
	if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
		return 0, 0, nil
	}

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			fileCount++
			totalSize += info.Size()
		}
		return nil
	})
	return fileCount, totalSize, err
}

// Clear removes the cache directory and everything in it.
func Clear(dir string) error {
	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}
