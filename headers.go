package corvid

import "strings"

// Headers is an ordered mapping from header name to value. Name
// lookups are case-insensitive; inserting a value for a name that
// differs only in case overwrites the prior value but preserves the
// casing of whichever write happened last, so serialization stays
// faithful to what the caller most recently wrote.
type Headers struct {
	order []string // canonical (lower-cased) keys, insertion order
	cased map[string]string
	value map[string]string
}

// NewHeaders returns an empty Headers map ready for use.
func NewHeaders() *Headers {
	return &Headers{
		cased: make(map[string]string),
		value: make(map[string]string),
	}
}

func canonicalKey(name string) string {
	return strings.ToLower(name)
}

// Set stores value under name, overwriting any prior value stored
// under a name that case-insensitively matches.
func (h *Headers) Set(name, value string) {
	key := canonicalKey(name)
	if _, exists := h.value[key]; !exists {
		h.order = append(h.order, key)
	}
	h.cased[key] = name
	h.value[key] = value
}

// Get returns the value stored under name (case-insensitively) and
// whether it was present.
func (h *Headers) Get(name string) (string, bool) {
	v, ok := h.value[canonicalKey(name)]
	return v, ok
}

// Del removes any value stored under name.
func (h *Headers) Del(name string) {
	key := canonicalKey(name)
	if _, ok := h.value[key]; !ok {
		return
	}
	delete(h.value, key)
	delete(h.cased, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct (case-insensitive) header names
// stored.
func (h *Headers) Len() int {
	return len(h.order)
}

// Each calls fn once per header in insertion order, using the casing
// of the name as it was last written.
func (h *Headers) Each(fn func(name, value string)) {
	for _, key := range h.order {
		fn(h.cased[key], h.value[key])
	}
}

// Clone returns a deep copy of h.
func (h *Headers) Clone() *Headers {
	out := NewHeaders()
	h.Each(func(name, value string) { out.Set(name, value) })
	return out
}
