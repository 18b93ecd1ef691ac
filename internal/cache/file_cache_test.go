package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	fc := NewFileCache[[]byte](t.TempDir(), 0, nil)

	key := fc.GenerateKey("sentinel-2-l2a", "2025-01-07", 20.0)
	require.NoError(t, fc.Set(key, []byte("tiff bytes")))

	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("tiff bytes"), got)
}

func TestGetMissingKey(t *testing.T) {
	fc := NewFileCache[[]byte](t.TempDir(), 0, nil)
	_, ok := fc.Get("nonexistent")
	assert.False(t, ok)
}

func TestGenerateKeyIsStable(t *testing.T) {
	fc := NewFileCache[[]byte](t.TempDir(), 0, nil)
	a := fc.GenerateKey("sensor", 1, 2.5)
	b := fc.GenerateKey("sensor", 1, 2.5)
	c := fc.GenerateKey("sensor", 1, 2.6)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTTLExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dir := t.TempDir()
	fc := NewFileCache[[]byte](dir, time.Hour, clock)

	require.NoError(t, fc.Set("key", []byte("fresh")))

	_, ok := fc.Get("key")
	assert.True(t, ok)

	clock.Advance(2 * time.Hour)
	_, ok = fc.Get("key")
	assert.False(t, ok, "entries past the TTL are misses")

	_, err := os.Stat(filepath.Join(dir, "key.json"))
	assert.True(t, os.IsNotExist(err), "expired entry is removed on read")
}

func TestCorruptedEntryIsRemoved(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[[]byte](dir, 0, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0644))
	_, ok := fc.Get("bad")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "bad.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestChecksumMismatchIsRemoved(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[[]byte](dir, 0, nil)

	entry := CacheEntry[[]byte]{Data: []byte("payload"), CreatedAt: time.Now(), Checksum: "tampered"}
	data, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "key.json"), data, 0644))

	_, ok := fc.Get("key")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	dir := t.TempDir()
	fc := NewFileCache[[]byte](dir, time.Hour, clock)

	require.NoError(t, fc.Set("old", []byte("a")))
	clock.Advance(2 * time.Hour)
	require.NoError(t, fc.Set("new", []byte("b")))

	removed, err := fc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := fc.Get("new")
	assert.True(t, ok)
}

func TestSweepWithoutTTL(t *testing.T) {
	fc := NewFileCache[[]byte](t.TempDir(), 0, nil)
	require.NoError(t, fc.Set("key", []byte("a")))

	removed, err := fc.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
}
