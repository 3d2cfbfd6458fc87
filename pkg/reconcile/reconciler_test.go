package reconcile

import (
	"errors"
	"testing"
)

type testEntity struct {
	id       string
	value    int
	tornDown bool
}

type testSample struct {
	value int
}

func newTestReconciler(t *testing.T) *Reconciler[string, *testEntity, testSample] {
	t.Helper()
	r, err := New(Funcs[string, *testEntity, testSample]{
		New: func(id string, s testSample) (*testEntity, error) {
			return &testEntity{id: id, value: s.value}, nil
		},
		Refresh: func(e *testEntity, s testSample) {
			e.value = s.value
		},
		Teardown: func(e *testEntity) {
			e.tornDown = true
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func snapshot(ids ...string) ([]string, map[string]testSample) {
	samples := make(map[string]testSample, len(ids))
	for i, id := range ids {
		samples[id] = testSample{value: i}
	}
	return ids, samples
}

func TestReconcilerRequiresConstructor(t *testing.T) {
	_, err := New(Funcs[string, *testEntity, testSample]{})
	if err != ErrNilConstructor {
		t.Errorf("New() error = %v, want ErrNilConstructor", err)
	}
}

func TestReconcilerAddAndRefresh(t *testing.T) {
	r := newTestReconciler(t)

	var added []string
	r.OnAdd(func(id string, e *testEntity) { added = append(added, id) })

	r.Apply(snapshot("a", "b"))

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if len(added) != 2 || added[0] != "a" || added[1] != "b" {
		t.Errorf("add events = %v, want [a b]", added)
	}

	// Same identities, new values: refresh in place, no events.
	added = nil
	ids := []string{"a", "b"}
	samples := map[string]testSample{"a": {value: 10}, "b": {value: 20}}
	r.Apply(ids, samples)

	if len(added) != 0 {
		t.Errorf("add events on refresh = %v, want none", added)
	}
	e, ok := r.Get("a")
	if !ok || e.value != 10 {
		t.Errorf("Get(a) = %+v, %v; want refreshed value 10", e, ok)
	}
}

func TestReconcilerIdempotence(t *testing.T) {
	r := newTestReconciler(t)

	var adds, removes int
	r.OnAdd(func(string, *testEntity) { adds++ })
	r.OnRemove(func(string, *testEntity) { removes++ })

	r.Apply(snapshot("p1", "p2"))
	adds, removes = 0, 0

	r.Apply(snapshot("p1", "p2"))

	if adds != 0 || removes != 0 {
		t.Errorf("second identical Apply: adds = %d, removes = %d, want 0, 0", adds, removes)
	}
}

func TestReconcilerRemoval(t *testing.T) {
	r := newTestReconciler(t)

	var removed []*testEntity
	r.OnRemove(func(id string, e *testEntity) { removed = append(removed, e) })

	r.Apply(snapshot("p1", "p2"))
	r.Apply(snapshot("p1"))

	if len(removed) != 1 || removed[0].id != "p2" {
		t.Fatalf("removed = %v, want exactly p2", removed)
	}
	if !removed[0].tornDown {
		t.Error("removed entity was not torn down")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if _, ok := r.Get("p2"); ok {
		t.Error("Get(p2) still present after removal")
	}
}

func TestReconcilerCompleteness(t *testing.T) {
	r := newTestReconciler(t)

	sequences := [][]string{
		{"a"},
		{"a", "b", "c"},
		{"b", "c"},
		{"d"},
		{},
		{"a", "d"},
	}
	for _, seq := range sequences {
		r.Apply(snapshot(seq...))

		got := r.IDs()
		if len(got) != len(seq) {
			t.Fatalf("after %v: IDs() = %v", seq, got)
		}
		want := make(map[string]bool, len(seq))
		for _, id := range seq {
			want[id] = true
		}
		for _, id := range got {
			if !want[id] {
				t.Fatalf("after %v: unexpected identity %q in index", seq, id)
			}
		}
	}
}

func TestReconcilerNoResurrection(t *testing.T) {
	r := newTestReconciler(t)

	var added []*testEntity
	r.OnAdd(func(id string, e *testEntity) { added = append(added, e) })

	r.Apply(snapshot("a"))
	first := added[0]

	r.Apply(snapshot())
	r.Apply(snapshot("a"))

	if len(added) != 2 {
		t.Fatalf("add events = %d, want 2", len(added))
	}
	if added[1] == first {
		t.Error("reappearing identity reused the old entity, want a fresh one")
	}
}

func TestReconcilerRemoveBeforeAdd(t *testing.T) {
	r := newTestReconciler(t)

	var events []string
	r.OnAdd(func(id string, e *testEntity) { events = append(events, "add:"+id) })
	r.OnRemove(func(id string, e *testEntity) { events = append(events, "remove:"+id) })

	r.Apply(snapshot("a"))
	events = nil

	// a vanishes, b appears in the same frame: remove must fire first.
	r.Apply(snapshot("b"))

	if len(events) != 2 || events[0] != "remove:a" || events[1] != "add:b" {
		t.Errorf("events = %v, want [remove:a add:b]", events)
	}
}

func TestReconcilerClear(t *testing.T) {
	r := newTestReconciler(t)

	var removed []string
	r.OnRemove(func(id string, e *testEntity) {
		if !e.tornDown {
			t.Errorf("remove event for %s fired before teardown", id)
		}
		removed = append(removed, id)
	})

	r.Apply(snapshot("a", "b", "c"))
	r.Clear()

	if len(removed) != 3 || removed[0] != "a" || removed[1] != "b" || removed[2] != "c" {
		t.Errorf("removed = %v, want [a b c] in list order", removed)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", r.Len())
	}
}

func TestReconcilerConstructorError(t *testing.T) {
	errBad := errors.New("bad entity")
	r, err := New(Funcs[string, *testEntity, testSample]{
		New: func(id string, s testSample) (*testEntity, error) {
			if id == "bad" {
				return nil, errBad
			}
			return &testEntity{id: id}, nil
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var reported []string
	r.OnError(func(id string, err error) {
		if !errors.Is(err, errBad) {
			t.Errorf("error for %s = %v, want errBad", id, err)
		}
		reported = append(reported, id)
	})

	r.Apply(snapshot("good", "bad", "also-good"))

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (bad entity skipped)", r.Len())
	}
	if len(reported) != 1 || reported[0] != "bad" {
		t.Errorf("reported errors = %v, want [bad]", reported)
	}

	// The skipped identity is retried on the next frame.
	r, _ = New(Funcs[string, *testEntity, testSample]{
		New: func(id string, s testSample) (*testEntity, error) {
			return &testEntity{id: id}, nil
		},
	})
	r.Apply(snapshot("bad"))
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}
