// Package fileset keeps the ordered, duplicate-free list of files the user
// has attached to the next message.
package fileset

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
)

const maxLabelLen = 30

// Set is an ordered collection of unique file paths.
type Set struct {
	mu    sync.RWMutex
	paths []string
}

// New creates a set pre-populated with paths, skipping duplicates.
func New(paths ...string) *Set {
	s := &Set{}
	s.AddAll(paths...)
	return s
}

// Add appends path unless it is empty or already present.
func (s *Set) Add(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if lo.Contains(s.paths, path) {
		return false
	}
	s.paths = append(s.paths, path)
	return true
}

// AddAll adds paths in order and returns how many were new.
func (s *Set) AddAll(paths ...string) int {
	added := 0
	for _, path := range paths {
		if s.Add(path) {
			added++
		}
	}
	return added
}

// Remove deletes path; later entries shift down by one.
func (s *Set) Remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := lo.IndexOf(s.paths, path)
	if idx < 0 {
		return false
	}
	s.paths = append(s.paths[:idx], s.paths[idx+1:]...)
	return true
}

// RemoveAt deletes the entry at index.
func (s *Set) RemoveAt(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.paths) {
		return false
	}
	s.paths = append(s.paths[:index], s.paths[index+1:]...)
	return true
}

// Contains reports whether path is in the set.
func (s *Set) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Contains(s.paths, path)
}

// Len returns the number of entries.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Snapshot returns an independent copy of the current paths.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Take returns the current paths and empties the set in one step, so a path
// added concurrently lands either in the result or in the set.
func (s *Set) Take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.paths
	s.paths = nil
	if out == nil {
		out = []string{}
	}
	return out
}

// Restore puts taken paths back in front of anything added since.
func (s *Set) Restore(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]string, 0, len(paths)+len(s.paths))
	for _, path := range append(append([]string(nil), paths...), s.paths...) {
		if strings.TrimSpace(path) != "" && !lo.Contains(merged, path) {
			merged = append(merged, path)
		}
	}
	s.paths = merged
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = nil
}

// Label returns the display name for path: its base name, shortened with an
// ellipsis when it would not fit a list row.
func Label(path string) string {
	name := filepath.Base(path)
	runes := []rune(name)
	if len(runes) < maxLabelLen {
		return name
	}
	return string(runes[:maxLabelLen-1]) + "..."
}
