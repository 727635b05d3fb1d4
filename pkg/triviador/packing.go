package triviador

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadEncoding is returned when a packed wire field cannot be decoded.
var ErrBadEncoding = errors.New("triviador: bad encoding")

const hexDigits = "0123456789ABCDEF"

func packByte(sb *strings.Builder, b byte) {
	sb.WriteByte(hexDigits[b>>4])
	sb.WriteByte(hexDigits[b&0x0F])
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: hex byte %q", ErrBadEncoding, s)
	}
	return byte(v), nil
}

// Bitmap is a set of countries packed as a 24-bit little-endian bitmap;
// bit c-1 stands for country c.
type Bitmap uint32

// NewBitmap returns a bitmap holding the given countries.
func NewBitmap(countries ...Country) Bitmap {
	var b Bitmap
	for _, c := range countries {
		b = b.Set(c)
	}
	return b
}

// AllCountries returns the bitmap with every country of the reference map set.
func AllCountries() Bitmap {
	return Bitmap(1<<CountryCount - 1)
}

// Set returns the bitmap with c added.
func (b Bitmap) Set(c Country) Bitmap {
	if c < 1 || c > 24 {
		return b
	}
	return b | 1<<(c-1)
}

// Clear returns the bitmap with c removed.
func (b Bitmap) Clear(c Country) Bitmap {
	if c < 1 || c > 24 {
		return b
	}
	return b &^ 1 << (c - 1)
}

// Has reports whether c is in the set.
func (b Bitmap) Has(c Country) bool {
	return c >= 1 && c <= 24 && b&(1<<(c-1)) != 0
}

// Empty reports whether the set holds no countries.
func (b Bitmap) Empty() bool { return b == 0 }

// Count returns the number of countries in the set.
func (b Bitmap) Count() int {
	n := 0
	for v := uint32(b); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Countries returns the members in ascending id order.
func (b Bitmap) Countries() []Country {
	out := make([]Country, 0, b.Count())
	for c := Country(1); c <= 24; c++ {
		if b.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Hex renders the bitmap as six uppercase hex digits, low byte first.
func (b Bitmap) Hex() string {
	var sb strings.Builder
	sb.Grow(6)
	packByte(&sb, byte(b))
	packByte(&sb, byte(b>>8))
	packByte(&sb, byte(b>>16))
	return sb.String()
}

// ParseBitmap decodes a six-digit hex bitmap produced by Hex.
func ParseBitmap(s string) (Bitmap, error) {
	if len(s) != 6 {
		return 0, fmt.Errorf("%w: bitmap %q", ErrBadEncoding, s)
	}
	var b Bitmap
	for i := 0; i < 3; i++ {
		v, err := parseHexByte(s[i*2 : i*2+2])
		if err != nil {
			return 0, err
		}
		b |= Bitmap(v) << (8 * i)
	}
	return b, nil
}

// PackAreas renders the ownership of every country as CountryCount
// two-hex-digit bytes, positionally indexed by country id. The slice is
// indexed 1..CountryCount; index 0 is ignored.
func PackAreas(areas []Area) string {
	var sb strings.Builder
	sb.Grow(CountryCount * 2)
	for c := 1; c <= CountryCount; c++ {
		packByte(&sb, areas[c].Pack())
	}
	return sb.String()
}

// ParseAreas decodes a packed area string into a slice indexed by country
// id (index 0 unused).
func ParseAreas(s string) ([]Area, error) {
	if len(s) != CountryCount*2 {
		return nil, fmt.Errorf("%w: areas length %d", ErrBadEncoding, len(s))
	}
	areas := make([]Area, CountryCount+1)
	for c := 1; c <= CountryCount; c++ {
		b, err := parseHexByte(s[(c-1)*2 : c*2])
		if err != nil {
			return nil, err
		}
		a, err := ParseAreaByte(b)
		if err != nil {
			return nil, fmt.Errorf("country %d: %w", c, err)
		}
		areas[c] = a
	}
	return areas, nil
}

// PackBases renders the three seat bases as three two-hex-digit bytes,
// positionally indexed by seat.
func PackBases(bases [3]Base) string {
	var sb strings.Builder
	sb.Grow(6)
	for seat := 0; seat < 3; seat++ {
		packByte(&sb, bases[seat].Pack())
	}
	return sb.String()
}

// ParseBases decodes a packed base string.
func ParseBases(s string) ([3]Base, error) {
	var bases [3]Base
	if len(s) != 6 {
		return bases, fmt.Errorf("%w: bases length %d", ErrBadEncoding, len(s))
	}
	for seat := 0; seat < 3; seat++ {
		b, err := parseHexByte(s[seat*2 : seat*2+2])
		if err != nil {
			return bases, err
		}
		base, err := ParseBaseByte(b)
		if err != nil {
			return bases, fmt.Errorf("seat %d: %w", seat+1, err)
		}
		bases[seat] = base
	}
	return bases, nil
}

// PackSelection renders the per-seat selections as three two-hex-digit
// country ids (00 when a seat has not selected).
func PackSelection(sel [3]Country) string {
	var sb strings.Builder
	sb.Grow(6)
	for seat := 0; seat < 3; seat++ {
		packByte(&sb, byte(sel[seat]))
	}
	return sb.String()
}

// ParseSelection decodes a packed selection string.
func ParseSelection(s string) ([3]Country, error) {
	var sel [3]Country
	if len(s) != 6 {
		return sel, fmt.Errorf("%w: selection length %d", ErrBadEncoding, len(s))
	}
	for seat := 0; seat < 3; seat++ {
		b, err := parseHexByte(s[seat*2 : seat*2+2])
		if err != nil {
			return sel, err
		}
		if b > CountryCount {
			return sel, fmt.Errorf("%w: selection country %d", ErrBadEncoding, b)
		}
		sel[seat] = Country(b)
	}
	return sel, nil
}

// FormatScores renders the three seat scores as "s1,s2,s3".
func FormatScores(scores [3]int) string {
	return fmt.Sprintf("%d,%d,%d", scores[0], scores[1], scores[2])
}

// ParseScores decodes a comma-joined score list.
func ParseScores(s string) ([3]int, error) {
	var scores [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return scores, fmt.Errorf("%w: scores %q", ErrBadEncoding, s)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return scores, fmt.Errorf("%w: score %q", ErrBadEncoding, p)
		}
		scores[i] = v
	}
	return scores, nil
}
