// Package cache is a file-backed cache for fetched imagery, keyed by the
// fetch parameters. It is owned by the imagery adapter; the compute stages
// never see it.
package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

type CacheEntry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

type CacheService[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T) error
	GenerateKey(params ...interface{}) string
}

// FileCache stores entries as JSON files under one directory. Entries expire
// after the TTL; zero disables expiry. Expired or corrupted entries are
// removed on read.
type FileCache[T any] struct {
	cacheDir string
	ttl      time.Duration
	clock    clockwork.Clock
}

func NewFileCache[T any](cacheDir string, ttl time.Duration, clock clockwork.Clock) *FileCache[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FileCache[T]{
		cacheDir: cacheDir,
		ttl:      ttl,
		clock:    clock,
	}
}

func (fc *FileCache[T]) GenerateKey(params ...interface{}) string {
	var keyData string
	for _, param := range params {
		keyData += fmt.Sprintf("%v_", param)
	}
	h := sha1.New()
	h.Write([]byte(keyData))
	return hex.EncodeToString(h.Sum(nil))
}

func (fc *FileCache[T]) Get(key string) (T, bool) {
	var zero T
	cacheFile := filepath.Join(fc.cacheDir, key+".json")

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		return zero, false
	}

	var entry CacheEntry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		os.Remove(cacheFile)
		return zero, false
	}

	if fc.ttl > 0 && fc.clock.Since(entry.CreatedAt) > fc.ttl {
		os.Remove(cacheFile)
		return zero, false
	}

	expectedChecksum := fc.calculateChecksum(entry.Data)
	if entry.Checksum != expectedChecksum {
		os.Remove(cacheFile)
		return zero, false
	}

	return entry.Data, true
}

func (fc *FileCache[T]) Set(key string, data T) error {
	if err := os.MkdirAll(fc.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}

	entry := CacheEntry[T]{
		Data:      data,
		CreatedAt: fc.clock.Now(),
		Checksum:  fc.calculateChecksum(data),
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %v", err)
	}

	cacheFile := filepath.Join(fc.cacheDir, key+".json")
	tmpFile := cacheFile + ".tmp"

	if err := os.WriteFile(tmpFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %v", err)
	}

	if err := os.Rename(tmpFile, cacheFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp cache file: %v", err)
	}

	return nil
}

// Sweep deletes every expired entry and returns how many were removed.
func (fc *FileCache[T]) Sweep() (int, error) {
	if fc.ttl <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(fc.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		path := filepath.Join(fc.cacheDir, dirEntry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry CacheEntry[json.RawMessage]
		if err := json.Unmarshal(data, &entry); err != nil || fc.clock.Since(entry.CreatedAt) > fc.ttl {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func (fc *FileCache[T]) calculateChecksum(data T) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return hex.EncodeToString(hash[:])
}
