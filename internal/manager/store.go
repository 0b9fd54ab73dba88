package manager

import (
	"sync"
	"time"

	"github.com/samplecache/samplecache/pkg/types"
)

// EntryStore is the metadata-only entry table keyed by sample ID. It
// holds no sample bytes; the byte storage lives in the embedding
// application. The store supplies the snapshots the eviction engine
// scores.
type EntryStore struct {
	mu        sync.RWMutex
	entries   map[string]*types.CacheEntry
	totalSize int64

	// now is swappable for tests.
	now func() time.Time
}

// NewEntryStore creates an empty store.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		entries: make(map[string]*types.CacheEntry),
		now:     time.Now,
	}
}

// Upsert creates or replaces the entry for a sample. A new entry
// starts with zero accesses; an existing one keeps its access history
// and lock state but takes the new size and quality.
func (s *EntryStore) Upsert(sampleID string, size int64, quality types.QualityProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[sampleID]; ok {
		s.totalSize += size - entry.Size
		entry.Size = size
		entry.QualityProfile = quality
		return
	}

	s.entries[sampleID] = &types.CacheEntry{
		SampleID:       sampleID,
		Size:           size,
		CachedAt:       now,
		LastAccessed:   now,
		QualityProfile: quality,
	}
	s.totalSize += size
}

// Touch marks an access: bumps the access count and the last-accessed
// time. Returns false when the sample is not cached.
func (s *EntryStore) Touch(sampleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sampleID]
	if !ok {
		return false
	}
	entry.LastAccessed = s.now()
	entry.AccessCount++
	return true
}

// UpdateUsage records playback behavior for a sample.
func (s *EntryStore) UpdateUsage(sampleID string, completionRate, averagePlaySeconds float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sampleID]
	if !ok {
		return false
	}
	entry.CompletionRate = completionRate
	entry.AveragePlayDuration = averagePlaySeconds
	return true
}

// SetLocked pins or unpins a sample. Locked entries are never eviction
// candidates.
func (s *EntryStore) SetLocked(sampleID string, locked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sampleID]
	if !ok {
		return false
	}
	entry.IsLocked = locked
	return true
}

// Get returns a copy of the entry.
func (s *EntryStore) Get(sampleID string) (types.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[sampleID]
	if !ok {
		return types.CacheEntry{}, false
	}
	return *entry, true
}

// Remove deletes the entry and returns its size.
func (s *EntryStore) Remove(sampleID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[sampleID]
	if !ok {
		return 0, false
	}
	delete(s.entries, sampleID)
	s.totalSize -= entry.Size
	return entry.Size, true
}

// Snapshot returns a copy of the entry table. Entry values are copied,
// so the eviction engine can score them without holding the store
// lock.
func (s *EntryStore) Snapshot() map[string]*types.CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*types.CacheEntry, len(s.entries))
	for id, entry := range s.entries {
		copied := *entry
		out[id] = &copied
	}
	return out
}

// TotalSize returns the summed size of all entries.
func (s *EntryStore) TotalSize() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalSize
}

// Len returns the number of entries.
func (s *EntryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
