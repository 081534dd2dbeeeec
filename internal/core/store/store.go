// Package store holds the local mirror of the server-side group/person
// membership. Each service instance owns its own Store; collaborators get a
// reference and read through the accessor methods.
package store

import (
	"sort"
	"sync"
)

// Store maps group ids to the persons enrolled under them. It is populated by
// a full sync and read concurrently by the HTTP handlers, the group entity
// publisher and the identify processors.
type Store struct {
	mu     sync.RWMutex
	groups map[string]map[string]string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		groups: make(map[string]map[string]string),
	}
}

// Replace swaps the whole store content in one step. Groups absent from the
// new content are gone afterwards; a copy is taken, so the caller keeps
// ownership of the passed maps.
func (s *Store) Replace(groups map[string]map[string]string) {
	fresh := make(map[string]map[string]string, len(groups))
	for groupID, persons := range groups {
		fresh[groupID] = make(map[string]string, len(persons))
		for name, id := range persons {
			fresh[groupID][name] = id
		}
	}
	s.mu.Lock()
	s.groups = fresh
	s.mu.Unlock()
}

// Groups returns all group ids, sorted.
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasGroup reports whether a group is known.
func (s *Store) HasGroup(groupID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[groupID]
	return ok
}

// Persons returns a copy of the person mapping of a group. The second return
// value is false if the group is unknown.
func (s *Store) Persons(groupID string) (map[string]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	persons, ok := s.groups[groupID]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(persons))
	for name, id := range persons {
		out[name] = id
	}
	return out, true
}

// Count returns the number of persons enrolled under a group.
func (s *Store) Count(groupID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[groupID])
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]string, len(s.groups))
	for groupID, persons := range s.groups {
		out[groupID] = make(map[string]string, len(persons))
		for name, id := range persons {
			out[groupID][name] = id
		}
	}
	return out
}
