package triviador

import "fmt"

// Tier is the value class of an occupied area, encoded in three bits of the
// area byte. Codes order the tiers by descending point value.
type Tier uint8

const (
	TierNone Tier = iota
	TierBase
	TierT400
	TierT300
	TierT200
)

// Points returns the point value of the tier.
func (t Tier) Points() int {
	switch t {
	case TierBase:
		return 1000
	case TierT400:
		return 400
	case TierT300:
		return 300
	case TierT200:
		return 200
	default:
		return 0
	}
}

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierBase:
		return "base"
	case TierT400:
		return "400"
	case TierT300:
		return "300"
	case TierT200:
		return "200"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Area is the ownership record of one country. Owner 0 means unoccupied.
//
// Wire packing, one byte: low nibble owner, bits 4-6 tier code, bit 7
// fortress flag.
type Area struct {
	Owner    int
	Tier     Tier
	Fortress bool
}

// Occupied reports whether the area has an owner.
func (a Area) Occupied() bool { return a.Owner != 0 }

// Pack returns the one-byte wire encoding of the area.
func (a Area) Pack() byte {
	b := byte(a.Owner&0x0F) | byte(a.Tier&0x07)<<4
	if a.Fortress {
		b |= 0x80
	}
	return b
}

// ParseAreaByte decodes a packed area byte, rejecting owner or tier values
// outside the legal range.
func ParseAreaByte(b byte) (Area, error) {
	a := Area{
		Owner:    int(b & 0x0F),
		Tier:     Tier(b >> 4 & 0x07),
		Fortress: b&0x80 != 0,
	}
	if a.Owner > 3 {
		return Area{}, fmt.Errorf("%w: area owner %d", ErrBadEncoding, a.Owner)
	}
	if a.Tier > TierT200 {
		return Area{}, fmt.Errorf("%w: area tier %d", ErrBadEncoding, a.Tier)
	}
	return a, nil
}

// Base is a seat's starting citadel: the country it stands on and how many
// of its three towers have been destroyed. Country 0 means the seat has no
// base yet.
//
// Wire packing, one byte: low six bits country id, top two bits towers.
type Base struct {
	Country Country
	Towers  int
}

// Pack returns the one-byte wire encoding of the base.
func (b Base) Pack() byte {
	return byte(b.Country&0x3F) | byte(b.Towers&0x03)<<6
}

// ParseBaseByte decodes a packed base byte.
func ParseBaseByte(raw byte) (Base, error) {
	b := Base{
		Country: Country(raw & 0x3F),
		Towers:  int(raw >> 6 & 0x03),
	}
	if b.Country > CountryCount {
		return Base{}, fmt.Errorf("%w: base country %d", ErrBadEncoding, b.Country)
	}
	return b, nil
}
