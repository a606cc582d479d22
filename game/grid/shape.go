package grid

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// ErrDecode is returned for malformed shape descriptors.
var ErrDecode = errors.New("decode shape")

// maxShapeArea keeps a hostile header from forcing a huge allocation.
const maxShapeArea = 1 << 20

// A shape descriptor is standard base64 over a 4-byte header (big-endian
// uint16 width, then height) followed by the row-major open mask, one bit
// per cell, least significant bit first. A set bit is an open cell.

// DecodeShape parses a descriptor into its bounds and open mask.
func DecodeShape(descriptor string) (Bounds, []bool, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(descriptor))
	if err != nil {
		return Bounds{}, nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) < 4 {
		return Bounds{}, nil, fmt.Errorf("%w: header needs 4 bytes, got %d", ErrDecode, len(raw))
	}
	b := Bounds{
		Width:  uint32(binary.BigEndian.Uint16(raw[0:2])),
		Height: uint32(binary.BigEndian.Uint16(raw[2:4])),
	}
	if b.Width == 0 || b.Height == 0 {
		return Bounds{}, nil, fmt.Errorf("%w: empty bounds %dx%d", ErrDecode, b.Width, b.Height)
	}
	if b.Area() > maxShapeArea {
		return Bounds{}, nil, fmt.Errorf("%w: %dx%d exceeds %d cells", ErrDecode, b.Width, b.Height, maxShapeArea)
	}
	mask := raw[4:]
	if need := (b.Area() + 7) / 8; len(mask) < need {
		return Bounds{}, nil, fmt.Errorf("%w: mask needs %d bytes, got %d", ErrDecode, need, len(mask))
	}
	open := make([]bool, b.Area())
	for i := range open {
		open[i] = mask[i/8]&(1<<(i%8)) != 0
	}
	return b, open, nil
}

// EncodeShape builds a descriptor. open is row-major; a nil open mask
// encodes an all-open shape.
func EncodeShape(b Bounds, open []bool) string {
	raw := make([]byte, 4+(b.Area()+7)/8)
	binary.BigEndian.PutUint16(raw[0:2], uint16(b.Width))
	binary.BigEndian.PutUint16(raw[2:4], uint16(b.Height))
	for i := 0; i < b.Area(); i++ {
		if open == nil || open[i] {
			raw[4+i/8] |= 1 << (i % 8)
		}
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// FromShape builds an empty grid from a shape descriptor.
func FromShape[T any](descriptor string) (*Grid[T], error) {
	b, open, err := DecodeShape(descriptor)
	if err != nil {
		return nil, err
	}
	g := New[T](b)
	for i, o := range open {
		g.closed[i] = !o
	}
	return g, nil
}

// ClosedPoints lists the closed squares in row-major order.
func (g *Grid[T]) ClosedPoints() []Point {
	var points []Point
	for i, c := range g.closed {
		if c {
			points = append(points, g.bounds.point(i))
		}
	}
	return points
}
