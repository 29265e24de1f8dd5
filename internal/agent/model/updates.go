package model

import "sort"

// Updates is a sub-agent's proposed change set, keyed by top-level section.
// Map values are overlaid key by key onto the existing section; anything else replaces it.
type Updates map[Section]any

// Sections returns the touched sections in a stable order.
func (u Updates) Sections() []Section {
	out := make([]Section, 0, len(u))
	for s := range u {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set records a proposed value for a section and returns u for chaining.
func (u Updates) Set(sec Section, v any) Updates {
	u[sec] = v
	return u
}
