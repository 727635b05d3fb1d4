package triviador

import "testing"

func TestHungaryMapSymmetry(t *testing.T) {
	m := HungaryMap()
	for a := Country(1); a <= CountryCount; a++ {
		for _, b := range m.Neighbours(a) {
			if a == b {
				t.Errorf("country %d is its own neighbour", a)
			}
			if !m.IsNeighbour(b, a) {
				t.Errorf("adjacency %d->%d not mirrored", a, b)
			}
		}
	}
}

func TestHungaryMapConnectivity(t *testing.T) {
	m := HungaryMap()
	for c := Country(1); c <= CountryCount; c++ {
		if len(m.Neighbours(c)) == 0 {
			t.Errorf("country %d (%s) has no neighbours", c, m.CountryName(c))
		}
	}
}

func TestPestNeighbours(t *testing.T) {
	m := HungaryMap()
	want := []Country{Nograd, Heves, JaszNagykunSzolnok, BacsKiskun, Fejer, KomaromEsztergom}
	got := m.Neighbours(Pest)
	if len(got) != len(want) {
		t.Fatalf("Pest has %d neighbours, want %d: %v", len(got), len(want), got)
	}
	for _, w := range want {
		if !m.IsNeighbour(Pest, w) {
			t.Errorf("Pest should border %s", m.CountryName(w))
		}
	}
}

func TestNeighboursOfAny(t *testing.T) {
	m := HungaryMap()

	got := m.NeighboursOfAny([]Country{Pest})
	if len(got) != 6 {
		t.Fatalf("NeighboursOfAny(Pest) = %v, want 6 entries", got)
	}

	// Owned countries are excluded even when they border each other.
	got = m.NeighboursOfAny([]Country{Pest, Nograd})
	for _, c := range got {
		if c == Pest || c == Nograd {
			t.Errorf("owned country %d in neighbour union %v", c, got)
		}
	}
	// Heves borders both; it must appear exactly once.
	seen := 0
	for _, c := range got {
		if c == Heves {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("Heves appears %d times in %v", seen, got)
	}

	prev := Country(0)
	for _, c := range got {
		if c <= prev {
			t.Errorf("neighbour union not ascending: %v", got)
			break
		}
		prev = c
	}
}

func TestInvalidCountry(t *testing.T) {
	m := HungaryMap()
	if m.Valid(0) || m.Valid(CountryCount+1) {
		t.Error("out-of-range country reported valid")
	}
	if m.Neighbours(0) != nil {
		t.Error("neighbours of country 0 should be nil")
	}
	if m.CountryName(0) != "" {
		t.Error("name of country 0 should be empty")
	}
}
