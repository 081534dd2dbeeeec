package store

import (
	"reflect"
	"testing"
)

func TestReplaceAndAccessors(t *testing.T) {
	s := New()
	s.Replace(map[string]map[string]string{
		"g1": {"p1": "p1", "p2": "p2"},
		"g2": {"p3": "p3"},
	})

	if got := s.Groups(); !reflect.DeepEqual(got, []string{"g1", "g2"}) {
		t.Errorf("Groups() = %v, want [g1 g2]", got)
	}
	if got := s.Count("g1"); got != 2 {
		t.Errorf("Count(g1) = %d, want 2", got)
	}
	if !s.HasGroup("g2") {
		t.Error("HasGroup(g2) = false, want true")
	}
	if s.HasGroup("g3") {
		t.Error("HasGroup(g3) = true, want false")
	}

	persons, ok := s.Persons("g1")
	if !ok {
		t.Fatal("Persons(g1) not found")
	}
	want := map[string]string{"p1": "p1", "p2": "p2"}
	if !reflect.DeepEqual(persons, want) {
		t.Errorf("Persons(g1) = %v, want %v", persons, want)
	}
}

func TestPersonsUnknownGroup(t *testing.T) {
	s := New()
	if _, ok := s.Persons("nope"); ok {
		t.Error("Persons on unknown group should report not found")
	}
}

func TestReplaceDropsAbsentGroups(t *testing.T) {
	s := New()
	s.Replace(map[string]map[string]string{
		"g1": {"p1": "p1"},
		"g2": {"p2": "p2"},
	})
	s.Replace(map[string]map[string]string{
		"g1": {"p1": "p1"},
	})

	if got := s.Groups(); !reflect.DeepEqual(got, []string{"g1"}) {
		t.Errorf("Groups() after replace = %v, want [g1]", got)
	}
	if s.HasGroup("g2") {
		t.Error("g2 should be gone after a replace without it")
	}
}

func TestReplaceCopiesInput(t *testing.T) {
	s := New()
	content := map[string]map[string]string{"g1": {"p1": "p1"}}
	s.Replace(content)

	content["g1"]["p9"] = "p9"
	delete(content, "g1")

	if got := s.Count("g1"); got != 1 {
		t.Errorf("mutating the input changed the store, Count(g1) = %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Replace(map[string]map[string]string{"g1": {"p1": "p1"}})

	snap := s.Snapshot()
	snap["g1"]["p9"] = "p9"
	delete(snap, "g1")

	if got := s.Count("g1"); got != 1 {
		t.Errorf("mutating the snapshot changed the store, Count(g1) = %d", got)
	}
}

func TestPersonsIsACopy(t *testing.T) {
	s := New()
	s.Replace(map[string]map[string]string{"g1": {"p1": "p1"}})

	persons, _ := s.Persons("g1")
	persons["p9"] = "p9"

	if got := s.Count("g1"); got != 1 {
		t.Errorf("mutating the returned mapping changed the store, Count(g1) = %d", got)
	}
}
