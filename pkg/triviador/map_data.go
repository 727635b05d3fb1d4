package triviador

import (
	"sort"
	"sync"
)

var (
	hunMapOnce sync.Once
	hunMapInst *Map
)

// Country ids on the Hungary map. Pest is 1 by convention; the rest follow
// the legacy client's numbering.
const (
	Pest Country = iota + 1
	Nograd
	Heves
	JaszNagykunSzolnok
	BacsKiskun
	Fejer
	KomaromEsztergom
	BorsodAbaujZemplen
	HajduBihar
	SzabolcsSzatmarBereg
	Bekes
	Csongrad
	Baranya
	Tolna
	Somogy
	Veszprem
	GyorMosonSopron
	Vas
	Zala
)

// HungaryMap returns the 19-county reference map. The map is built once and
// cached; subsequent calls return the same pointer. Callers must not mutate
// the returned map.
func HungaryMap() *Map {
	hunMapOnce.Do(func() {
		hunMapInst = buildHungaryMap()
	})
	return hunMapInst
}

func buildHungaryMap() *Map {
	m := &Map{Name: "HU"}

	name := func(c Country, n string) {
		m.names[c] = n
	}

	// border adds one undirected edge.
	border := func(a, b Country) {
		m.adjacency[a] = append(m.adjacency[a], b)
		m.adjacency[b] = append(m.adjacency[b], a)
	}

	name(Pest, "Pest")
	name(Nograd, "Nógrád")
	name(Heves, "Heves")
	name(JaszNagykunSzolnok, "Jász-Nagykun-Szolnok")
	name(BacsKiskun, "Bács-Kiskun")
	name(Fejer, "Fejér")
	name(KomaromEsztergom, "Komárom-Esztergom")
	name(BorsodAbaujZemplen, "Borsod-Abaúj-Zemplén")
	name(HajduBihar, "Hajdú-Bihar")
	name(SzabolcsSzatmarBereg, "Szabolcs-Szatmár-Bereg")
	name(Bekes, "Békés")
	name(Csongrad, "Csongrád")
	name(Baranya, "Baranya")
	name(Tolna, "Tolna")
	name(Somogy, "Somogy")
	name(Veszprem, "Veszprém")
	name(GyorMosonSopron, "Győr-Moson-Sopron")
	name(Vas, "Vas")
	name(Zala, "Zala")

	border(Pest, Nograd)
	border(Pest, Heves)
	border(Pest, JaszNagykunSzolnok)
	border(Pest, BacsKiskun)
	border(Pest, Fejer)
	border(Pest, KomaromEsztergom)
	border(Nograd, Heves)
	border(Heves, JaszNagykunSzolnok)
	border(Heves, BorsodAbaujZemplen)
	border(JaszNagykunSzolnok, BacsKiskun)
	border(JaszNagykunSzolnok, Csongrad)
	border(JaszNagykunSzolnok, Bekes)
	border(JaszNagykunSzolnok, HajduBihar)
	border(JaszNagykunSzolnok, BorsodAbaujZemplen)
	border(BacsKiskun, Csongrad)
	border(BacsKiskun, Baranya)
	border(BacsKiskun, Tolna)
	border(BacsKiskun, Fejer)
	border(Fejer, Tolna)
	border(Fejer, Somogy)
	border(Fejer, Veszprem)
	border(Fejer, KomaromEsztergom)
	border(KomaromEsztergom, Veszprem)
	border(KomaromEsztergom, GyorMosonSopron)
	border(BorsodAbaujZemplen, HajduBihar)
	border(BorsodAbaujZemplen, SzabolcsSzatmarBereg)
	border(HajduBihar, Bekes)
	border(HajduBihar, SzabolcsSzatmarBereg)
	border(Bekes, Csongrad)
	border(Baranya, Tolna)
	border(Baranya, Somogy)
	border(Tolna, Somogy)
	border(Somogy, Veszprem)
	border(Somogy, Zala)
	border(Veszprem, Zala)
	border(Veszprem, Vas)
	border(Veszprem, GyorMosonSopron)
	border(GyorMosonSopron, Vas)
	border(Vas, Zala)

	for c := Country(1); c <= CountryCount; c++ {
		adj := m.adjacency[c]
		sort.Slice(adj, func(i, j int) bool { return adj[i] < adj[j] })
	}

	return m
}
