package graph

import "testing"

func gateSeries() Series {
	return Series{
		ID: "s",
		Courses: []Course{{
			ID: "c",
			Lessons: []LessonFile{
				{ID: "a", Position: 1, IsUnlocked: true},
				{ID: "b", Position: 2, IsUnlocked: true},
				{ID: "c", Position: 3, IsUnlocked: false},
			},
		}},
	}
}

func TestGate_FirstItemHasNoPrevious(t *testing.T) {
	g := Build(gateSeries())
	if CanGoPrevious(g, "a") {
		t.Fatal("first item must not allow previous, regardless of its own unlock flag")
	}
}

func TestGate_LastItemHasNoNext(t *testing.T) {
	g := Build(gateSeries())
	if CanGoNext(g, "c") {
		t.Fatal("last item must not allow next")
	}
}

func TestGate_LockedNeighborDeniesNavigation(t *testing.T) {
	g := Build(gateSeries())
	if CanGoNext(g, "b") {
		t.Fatal("next is locked, navigation must be denied")
	}
	if _, ok := Next(g, "b"); ok {
		t.Fatal("Next must be a no-op when the gate denies")
	}
}

func TestGate_UnlockedNeighborAllowsNavigation(t *testing.T) {
	g := Build(gateSeries())
	if !CanGoPrevious(g, "b") {
		t.Fatal("previous is unlocked, navigation must be allowed")
	}
	id, ok := Previous(g, "b")
	if !ok || id != "a" {
		t.Fatalf("expected previous 'a', got %q ok=%v", id, ok)
	}
	id, ok = Next(g, "a")
	if !ok || id != "b" {
		t.Fatalf("expected next 'b', got %q ok=%v", id, ok)
	}
}

func TestGate_EmptyGraph(t *testing.T) {
	var g Graph
	if CanGoPrevious(g, "a") || CanGoNext(g, "a") {
		t.Fatal("empty graph must deny both directions")
	}
}

func TestGate_UnknownItem(t *testing.T) {
	g := Build(gateSeries())
	if CanGoPrevious(g, "nope") || CanGoNext(g, "nope") {
		t.Fatal("unknown item must deny both directions")
	}
}
