// Package tts shapes, queues and caches text-to-speech requests. Audio
// synthesis happens in an external proxy; this package owns the
// priority queue, the single worker and the content-addressed mp3
// cache.
package tts

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// CacheDirName is the directory under the system temp dir holding
// cached audio.
const CacheDirName = "rishi_tts"

// Cache is the content-addressed audio store. Keys are
// blake3(book || cfi); text deliberately stays out of the key, callers
// invalidate via ClearBook when text changes.
type Cache struct {
	base string
}

// NewCache creates a cache rooted at base; empty means
// <tempdir>/rishi_tts.
func NewCache(base string) *Cache {
	if base == "" {
		base = filepath.Join(os.TempDir(), CacheDirName)
	}
	return &Cache{base: base}
}

// Base returns the cache root.
func (c *Cache) Base() string { return c.base }

// Key returns the hex content address for a (book, cfi) pair.
func (c *Cache) Key(bookKey, cfiRange string) string {
	h := blake3.New()
	h.Write([]byte(bookKey))
	h.Write([]byte(cfiRange))
	return hex.EncodeToString(h.Sum(nil))
}

// Path returns the audio file location, creating the book directory.
func (c *Cache) Path(bookKey, cfiRange string) (string, error) {
	dir := filepath.Join(c.base, bookKey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("tts: cache dir %s: %w", dir, err)
	}
	return filepath.Join(dir, c.Key(bookKey, cfiRange)+".mp3"), nil
}

// Lookup returns the cached audio path when it exists.
func (c *Cache) Lookup(bookKey, cfiRange string) (string, bool) {
	p := filepath.Join(c.base, bookKey, c.Key(bookKey, cfiRange)+".mp3")
	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		return p, true
	}
	return "", false
}

// Write stores audio bytes under the pair's address. The write goes
// through a temp file and rename so concurrent readers never see a
// partial file.
func (c *Cache) Write(bookKey, cfiRange string, data []byte) (string, error) {
	out, err := c.Path(bookKey, cfiRange)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(out), ".tts-*")
	if err != nil {
		return "", fmt.Errorf("tts: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("tts: write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("tts: close audio: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("tts: move audio into place: %w", err)
	}
	return out, nil
}

// ClearBook deletes every cached file of one book.
func (c *Cache) ClearBook(bookKey string) error {
	dir := filepath.Join(c.base, bookKey)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(dir)
}

// BookSize sums the cached audio bytes of one book.
func (c *Cache) BookSize(bookKey string) (int64, error) {
	dir := filepath.Join(c.base, bookKey)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var size int64
	for _, e := range entries {
		if fi, err := e.Info(); err == nil && fi.Mode().IsRegular() {
			size += fi.Size()
		}
	}
	return size, nil
}
