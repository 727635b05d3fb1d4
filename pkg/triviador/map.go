// Package triviador implements the rules core of the territorial trivia
// game: the reference map and its adjacency relation, the authoritative
// match state with invariant-preserving transitions, and the packed wire
// encodings shared with the legacy client.
package triviador

import "sort"

// Country identifies one territory on the map. Valid ids run 1..CountryCount;
// 0 encodes "none" (no selection, no response).
type Country uint8

// CountryCount is the number of territories on the reference map.
const CountryCount = 19

// Map is an immutable game board: named countries and an undirected,
// irreflexive neighbour relation.
type Map struct {
	Name string

	names     [CountryCount + 1]string
	adjacency [CountryCount + 1][]Country
}

// Valid reports whether c is a playable country id on this map.
func (m *Map) Valid(c Country) bool {
	return c >= 1 && c <= CountryCount
}

// CountryName returns the display name of c, or "" for an invalid id.
func (m *Map) CountryName(c Country) string {
	if !m.Valid(c) {
		return ""
	}
	return m.names[c]
}

// Neighbours returns the countries adjacent to c in ascending id order.
// The returned slice is shared; callers must not mutate it.
func (m *Map) Neighbours(c Country) []Country {
	if !m.Valid(c) {
		return nil
	}
	return m.adjacency[c]
}

// IsNeighbour reports whether a and b share a border.
func (m *Map) IsNeighbour(a, b Country) bool {
	for _, n := range m.Neighbours(a) {
		if n == b {
			return true
		}
	}
	return false
}

// Countries returns all country ids in ascending order.
func (m *Map) Countries() []Country {
	out := make([]Country, 0, CountryCount)
	for c := Country(1); c <= CountryCount; c++ {
		out = append(out, c)
	}
	return out
}

// NeighboursOfAny returns the union of the neighbours of all given
// countries, deduplicated, excluding the countries themselves, in
// ascending order.
func (m *Map) NeighboursOfAny(owned []Country) []Country {
	seen := make(map[Country]bool, len(owned))
	for _, c := range owned {
		seen[c] = true
	}
	var out []Country
	found := make(map[Country]bool)
	for _, c := range owned {
		for _, n := range m.Neighbours(c) {
			if seen[n] || found[n] {
				continue
			}
			found[n] = true
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
