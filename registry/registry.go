// Package registry tracks the open suite and test reporters of one launch.
//
// A name is present only while its remote item is open. Snapshots are
// returned in insertion order. The registry does no I/O and is not safe for
// concurrent use; the bridge holds its own lock around every call.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pithecene-io/rpbridge/reporting"
)

// ErrDuplicate is returned when adding a name that is already registered.
var ErrDuplicate = errors.New("registry: name already registered")

// Entry is a registered name and its open reporter.
type Entry struct {
	Name     string
	Reporter reporting.Reporter
}

// table is an insertion-ordered name → reporter map.
type table struct {
	byName map[string]reporting.Reporter
	order  []string
}

func newTable() table {
	return table{byName: make(map[string]reporting.Reporter)}
}

func (t *table) get(name string) (reporting.Reporter, bool) {
	r, ok := t.byName[name]
	return r, ok
}

func (t *table) add(kind, name string, r reporting.Reporter) error {
	if _, ok := t.byName[name]; ok {
		return fmt.Errorf("%s %q: %w", kind, name, ErrDuplicate)
	}
	t.byName[name] = r
	t.order = append(t.order, name)
	return nil
}

func (t *table) remove(name string) {
	if _, ok := t.byName[name]; !ok {
		return
	}
	delete(t.byName, name)
	if i := slices.Index(t.order, name); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
}

func (t *table) entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, Entry{Name: name, Reporter: t.byName[name]})
	}
	return out
}

// Registry maps suite and test names to their open reporters.
type Registry struct {
	suites table
	tests  table
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{suites: newTable(), tests: newTable()}
}

// Suite returns the open reporter for a suite name.
func (r *Registry) Suite(name string) (reporting.Reporter, bool) {
	return r.suites.get(name)
}

// AddSuite registers a suite reporter. Returns ErrDuplicate if the name is
// already open.
func (r *Registry) AddSuite(name string, rep reporting.Reporter) error {
	return r.suites.add("suite", name, rep)
}

// RemoveSuite drops a suite name. No-op if absent.
func (r *Registry) RemoveSuite(name string) {
	r.suites.remove(name)
}

// Suites returns a snapshot of open suites in insertion order.
func (r *Registry) Suites() []Entry {
	return r.suites.entries()
}

// Test returns the open reporter for a test name.
func (r *Registry) Test(name string) (reporting.Reporter, bool) {
	return r.tests.get(name)
}

// AddTest registers a test reporter. Returns ErrDuplicate if the name is
// already open.
func (r *Registry) AddTest(name string, rep reporting.Reporter) error {
	return r.tests.add("test", name, rep)
}

// RemoveTest drops a test name. No-op if absent.
func (r *Registry) RemoveTest(name string) {
	r.tests.remove(name)
}

// Tests returns a snapshot of open tests in insertion order.
func (r *Registry) Tests() []Entry {
	return r.tests.entries()
}

// Len returns the number of open suites and tests.
func (r *Registry) Len() (suites, tests int) {
	return len(r.suites.byName), len(r.tests.byName)
}
