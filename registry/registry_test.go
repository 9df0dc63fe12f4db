package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/pithecene-io/rpbridge/reporting"
)

// fakeReporter is a test double identified by ID only.
type fakeReporter struct{ id string }

func (f *fakeReporter) ID() string { return f.id }

func (f *fakeReporter) Log(context.Context, *reporting.LogRequest) error { return nil }

func (f *fakeReporter) StartChild(context.Context, *reporting.StartItemRequest) (reporting.Reporter, error) {
	return nil, errors.New("not supported")
}

func (f *fakeReporter) Finish(context.Context, *reporting.FinishItemRequest) error { return nil }

func TestRegistry_AddAndGet(t *testing.T) {
	r := New()
	suite := &fakeReporter{id: "s1"}
	test := &fakeReporter{id: "t1"}

	if err := r.AddSuite("LoginSuite", suite); err != nil {
		t.Fatalf("AddSuite: %v", err)
	}
	if err := r.AddTest("T1", test); err != nil {
		t.Fatalf("AddTest: %v", err)
	}

	got, ok := r.Suite("LoginSuite")
	if !ok || got.ID() != "s1" {
		t.Errorf("Suite(LoginSuite) = %v, %v; want s1, true", got, ok)
	}
	got, ok = r.Test("T1")
	if !ok || got.ID() != "t1" {
		t.Errorf("Test(T1) = %v, %v; want t1, true", got, ok)
	}

	if _, ok := r.Suite("T1"); ok {
		t.Error("suite and test namespaces should be separate")
	}
	if _, ok := r.Test("missing"); ok {
		t.Error("Test(missing) should be absent")
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := New()
	if err := r.AddTest("T1", &fakeReporter{id: "a"}); err != nil {
		t.Fatal(err)
	}

	err := r.AddTest("T1", &fakeReporter{id: "b"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("AddTest duplicate err = %v, want ErrDuplicate", err)
	}

	got, _ := r.Test("T1")
	if got.ID() != "a" {
		t.Errorf("duplicate add replaced entry: got %s, want a", got.ID())
	}

	if err := r.AddSuite("S", &fakeReporter{}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddSuite("S", &fakeReporter{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("AddSuite duplicate err = %v, want ErrDuplicate", err)
	}
}

func TestRegistry_InsertionOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.AddTest(name, &fakeReporter{id: name}); err != nil {
			t.Fatal(err)
		}
	}
	r.RemoveTest("a")
	if err := r.AddTest("a", &fakeReporter{id: "a2"}); err != nil {
		t.Fatal(err)
	}

	entries := r.Tests()
	want := []string{"c", "b", "a"}
	if len(entries) != len(want) {
		t.Fatalf("len(Tests()) = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("Tests()[%d].Name = %q, want %q", i, e.Name, want[i])
		}
	}
	if entries[2].Reporter.ID() != "a2" {
		t.Errorf("re-added entry ID = %q, want a2", entries[2].Reporter.ID())
	}
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := New()
	r.RemoveTest("never")
	r.RemoveSuite("never")

	if err := r.AddSuite("S", &fakeReporter{}); err != nil {
		t.Fatal(err)
	}
	r.RemoveSuite("S")
	r.RemoveSuite("S")

	if s, tst := r.Len(); s != 0 || tst != 0 {
		t.Errorf("Len() = %d, %d; want 0, 0", s, tst)
	}
}

func TestRegistry_SnapshotIsCopy(t *testing.T) {
	r := New()
	_ = r.AddSuite("S1", &fakeReporter{id: "1"})

	snap := r.Suites()
	_ = r.AddSuite("S2", &fakeReporter{id: "2"})
	r.RemoveSuite("S1")

	if len(snap) != 1 || snap[0].Name != "S1" {
		t.Errorf("snapshot changed after mutation: %+v", snap)
	}
	if s, _ := r.Len(); s != 1 {
		t.Errorf("suites Len = %d, want 1", s)
	}
}
