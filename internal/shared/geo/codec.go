package geo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SRID is the WGS84 coordinate reference system id carried on every
// encoded point.
const SRID = 4326

const (
	wkbPoint     = 1
	ewkbSRIDFlag = 0x20000000
)

// ErrBadGeometry marks a stored geometry value that cannot be read back as
// a point. Callers treat it as "no location available".
var ErrBadGeometry = errors.New("bad geometry")

// EncodeEWKB encodes p as a little-endian EWKB point tagged with SRID 4326.
// X is longitude, Y is latitude.
func EncodeEWKB(p Point) []byte {
	buf := make([]byte, 25)
	buf[0] = 1 // little-endian
	binary.LittleEndian.PutUint32(buf[1:5], wkbPoint|ewkbSRIDFlag)
	binary.LittleEndian.PutUint32(buf[5:9], SRID)
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(p.Lng))
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(p.Lat))
	return buf
}

// DecodeEWKB reads a WKB or EWKB point, honoring the declared byte order.
// The SRID field is only present when the type word carries the SRID flag.
func DecodeEWKB(b []byte) (Point, error) {
	if len(b) < 21 {
		return Point{}, fmt.Errorf("%w: buffer too short (%d bytes)", ErrBadGeometry, len(b))
	}

	var order binary.ByteOrder
	switch b[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return Point{}, fmt.Errorf("%w: unknown byte order %#x", ErrBadGeometry, b[0])
	}

	geomType := order.Uint32(b[1:5])
	rest := b[5:]
	if geomType&ewkbSRIDFlag != 0 {
		if len(b) < 25 {
			return Point{}, fmt.Errorf("%w: buffer too short for srid point", ErrBadGeometry)
		}
		if srid := order.Uint32(rest[:4]); srid != SRID {
			return Point{}, fmt.Errorf("%w: unexpected srid %d", ErrBadGeometry, srid)
		}
		rest = rest[4:]
	}
	if geomType&^uint32(ewkbSRIDFlag) != wkbPoint {
		return Point{}, fmt.Errorf("%w: not a point (type %d)", ErrBadGeometry, geomType)
	}

	p := Point{
		Lng: math.Float64frombits(order.Uint64(rest[0:8])),
		Lat: math.Float64frombits(order.Uint64(rest[8:16])),
	}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: coordinates out of range (%v, %v)", ErrBadGeometry, p.Lat, p.Lng)
	}
	return p, nil
}

// DecodeText parses the textual fallback form "POINT(lng lat)", with an
// optional "SRID=4326;" prefix.
func DecodeText(s string) (Point, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "SRID="); ok {
		srid, body, found := strings.Cut(rest, ";")
		if !found || srid != strconv.Itoa(SRID) {
			return Point{}, fmt.Errorf("%w: unexpected srid prefix", ErrBadGeometry)
		}
		s = body
	}

	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POINT(") || !strings.HasSuffix(s, ")") {
		return Point{}, fmt.Errorf("%w: not a point literal", ErrBadGeometry)
	}
	fields := strings.Fields(s[len("POINT(") : len(s)-1])
	if len(fields) != 2 {
		return Point{}, fmt.Errorf("%w: want two coordinates, got %d", ErrBadGeometry, len(fields))
	}

	lng, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrBadGeometry, err)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrBadGeometry, err)
	}

	p := Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return Point{}, fmt.Errorf("%w: coordinates out of range (%v, %v)", ErrBadGeometry, lat, lng)
	}
	return p, nil
}

// DecodePoint reads a stored location in either binary or text form.
func DecodePoint(b []byte) (Point, error) {
	p, err := DecodeEWKB(b)
	if err == nil {
		return p, nil
	}
	if tp, terr := DecodeText(string(b)); terr == nil {
		return tp, nil
	}
	return Point{}, err
}
