package cache

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File-backed cache for rendered XML documents (RSS feeds, the sitemap).
// Entries are grouped in a directory per kind and keyed by an xxHash of the
// logical key, so arbitrary tag names and author ids stay filesystem-safe.

// GetCachePath returns the cache file path for a rendered document.
func GetCachePath(kind, key string) string {
	hash := generateHash(kind + ":" + key)
	shortHash := hash[:16]
	cacheDir := filepath.Join("cache", kind)
	return filepath.Join(cacheDir, fmt.Sprintf("%s.xml", shortHash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	hash := xxhash.Sum64String(s)
	// Convert uint64 to hex string
	return fmt.Sprintf("%016x", hash)
}

// EnsureCacheDir ensures the cache directory exists
func EnsureCacheDir(kind string) error {
	cacheDir := filepath.Join("cache", kind)
	return os.MkdirAll(cacheDir, 0755)
}

// WriteCache writes a rendered document to its cache file
func WriteCache(kind, key, content string) error {
	if err := EnsureCacheDir(kind); err != nil {
		return err
	}

	cachePath := GetCachePath(kind, key)
	return ioutil.WriteFile(cachePath, []byte(content), 0644)
}

// ReadCache reads a cached document if it exists and is not expired
func ReadCache(kind, key string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(kind, key)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}

	// Check if cache is expired
	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := ioutil.ReadFile(cachePath)
	if err != nil {
		return "", false
	}

	return string(content), true
}

// ClearKind removes every cached document of one kind
func ClearKind(kind string) error {
	return os.RemoveAll(filepath.Join("cache", kind))
}

// ClearOldCache removes cache files older than the specified duration
func ClearOldCache(maxAge time.Duration) error {
	cacheRoot := "cache"

	if _, err := os.Stat(cacheRoot); os.IsNotExist(err) {
		return nil
	}

	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		// Skip non-XML files
		if !strings.HasSuffix(path, ".xml") {
			return nil
		}

		// Remove if older than maxAge
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
