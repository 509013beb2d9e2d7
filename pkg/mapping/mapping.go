// Package mapping assigns stable, namespaced pseudonyms to bundle, field and
// role names so a report can be shared without leaking site vocabulary.
package mapping

import (
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Pseudonym categories. A category is both the pseudonym prefix and the
// first half of the namespace key.
const (
	CategoryBundle = "bundle"
	CategoryRole   = "role"
	CategoryField  = "field"
)

// roleNamespace is the single namespace shared by all user roles.
const roleNamespace = "role"

// Assignment is one recorded value to pseudonym pair.
type Assignment struct {
	Value     string
	Pseudonym string
}

// lookup is one Map call held back by a deferred mapper.
type lookup struct {
	namespace, category, value string
}

// placeholderPrefix starts every token handed out by a deferred mapper.
// Site names never contain NUL.
const placeholderPrefix = "\x00"

// table keeps the assignments of one namespace in first-seen order.
type table struct {
	index   map[string]int
	entries []Assignment
}

// Mapper hands out pseudonyms of the form "<category>-<n>" where n is the
// number of distinct values seen earlier in the same namespace.
// The zero value is not usable; call New.
type Mapper struct {
	mu      sync.Mutex
	enabled bool
	tables  map[string]*table

	// Set on mappers returned by Defer.
	parent  *Mapper
	lookups []lookup
	pending map[lookup]string
}

// New creates an enabled Mapper with no assignments.
func New() *Mapper {
	return &Mapper{
		enabled: true,
		tables:  make(map[string]*table),
	}
}

// SetEnabled switches pseudonymization on or off. Existing assignments are
// kept, so re-enabling continues the numbering where it stopped.
func (m *Mapper) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = enabled
}

// Enabled reports whether Map currently substitutes values.
func (m *Mapper) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.enabled
}

// Map returns the pseudonym of value within the namespace formed by category
// and namespace. When the mapper is disabled the value is returned unchanged
// and nothing is recorded.
func (m *Mapper) Map(namespace, category, value string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return value
	}

	if m.parent != nil {
		return m.deferLookup(lookup{namespace: namespace, category: category, value: value})
	}

	key := namespaceKey(namespace, category)

	tbl, ok := m.tables[key]
	if !ok {
		tbl = &table{index: make(map[string]int)}
		m.tables[key] = tbl
	}

	if pos, seen := tbl.index[value]; seen {
		return tbl.entries[pos].Pseudonym
	}

	pseudonym := category + "-" + strconv.Itoa(len(tbl.entries))
	tbl.index[value] = len(tbl.entries)
	tbl.entries = append(tbl.entries, Assignment{Value: value, Pseudonym: pseudonym})

	return pseudonym
}

// Defer returns a mapper that hands out placeholder tokens instead of
// pseudonyms and remembers every lookup. Commit replays the lookups against
// m in the order they were made, so pseudonym numbering matches what direct
// calls would have produced at that point. A deferred mapper is enabled when
// m is enabled at the time of the call.
func (m *Mapper) Defer() *Mapper {
	return &Mapper{
		enabled: m.Enabled(),
		tables:  make(map[string]*table),
		parent:  m,
		pending: make(map[lookup]string),
	}
}

// Commit assigns the real pseudonyms of a deferred mapper's lookups and
// returns them keyed by placeholder. It returns nil for a mapper that was
// not created by Defer.
func (m *Mapper) Commit() map[string]string {
	m.mu.Lock()
	lookups := slices.Clone(m.lookups)
	m.mu.Unlock()

	if m.parent == nil {
		return nil
	}

	out := make(map[string]string, len(lookups))

	for idx, l := range lookups {
		out[placeholder(idx)] = m.parent.Map(l.namespace, l.category, l.value)
	}

	return out
}

// IsPlaceholder reports whether s is a token handed out by a deferred mapper.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(s, placeholderPrefix)
}

func (m *Mapper) deferLookup(l lookup) string {
	if token, seen := m.pending[l]; seen {
		return token
	}

	token := placeholder(len(m.lookups))
	m.pending[l] = token
	m.lookups = append(m.lookups, l)

	return token
}

func placeholder(idx int) string {
	return placeholderPrefix + strconv.Itoa(idx)
}

// Bundle maps a bundle name of the given entity type.
func (m *Mapper) Bundle(entityTypeID, bundle string) string {
	return m.Map(entityTypeID, CategoryBundle, bundle)
}

// Field maps a field name of the given entity type.
func (m *Mapper) Field(entityTypeID, field string) string {
	return m.Map(entityTypeID, CategoryField, field)
}

// Role maps a user role name.
func (m *Mapper) Role(role string) string {
	return m.Map(roleNamespace, CategoryRole, role)
}

// Assignments returns a copy of the recorded assignments of one namespace in
// the order they were made.
func (m *Mapper) Assignments(namespace, category string) []Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()

	tbl, ok := m.tables[namespaceKey(namespace, category)]
	if !ok {
		return nil
	}

	out := make([]Assignment, len(tbl.entries))
	copy(out, tbl.entries)

	return out
}

// namespaceKey joins category and namespace the way assignments are keyed:
// category first, then namespace. The separator keeps ("ab", "c") and
// ("b", "ca") apart.
func namespaceKey(namespace, category string) string {
	return category + "\x00" + namespace
}
