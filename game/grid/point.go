package grid

import (
	"fmt"
	"strings"
)

// Point is a cell coordinate. Rows grow southwards and columns grow eastwards.
type Point struct {
	Row uint32 `json:"row" yaml:"row"`
	Col uint32 `json:"col" yaml:"col"`
}

// Pt is shorthand for Point{Row: row, Col: col}.
func Pt(row, col uint32) Point {
	return Point{Row: row, Col: col}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Adjacent reports whether q is one orthogonal step away from p.
func (p Point) Adjacent(q Point) bool {
	return absDiff(p.Row, q.Row)+absDiff(p.Col, q.Col) == 1
}

// Step moves one cell in direction d, clamped to b. A step off the edge
// returns p unchanged.
func (p Point) Step(d Direction, b Bounds) Point {
	next := p
	switch d {
	case North:
		if next.Row > 0 {
			next.Row--
		}
	case South:
		if next.Row+1 < b.Height {
			next.Row++
		}
	case East:
		if next.Col+1 < b.Width {
			next.Col++
		}
	case West:
		if next.Col > 0 {
			next.Col--
		}
	}
	return next
}

// Toward returns the single directions that bring p closer to q,
// vertical first. Empty when p == q.
func (p Point) Toward(q Point) []Direction {
	var dirs []Direction
	if q.Row < p.Row {
		dirs = append(dirs, North)
	} else if q.Row > p.Row {
		dirs = append(dirs, South)
	}
	if q.Col > p.Col {
		dirs = append(dirs, East)
	} else if q.Col < p.Col {
		dirs = append(dirs, West)
	}
	return dirs
}

// Bounds is the size of a grid. Width counts columns, Height counts rows.
type Bounds struct {
	Width  uint32 `json:"width" yaml:"width"`
	Height uint32 `json:"height" yaml:"height"`
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p Point) bool {
	return p.Row < b.Height && p.Col < b.Width
}

// Area is the number of cells in b.
func (b Bounds) Area() int {
	return int(b.Width) * int(b.Height)
}

func (b Bounds) index(p Point) int {
	return int(p.Row)*int(b.Width) + int(p.Col)
}

func (b Bounds) point(i int) Point {
	return Point{Row: uint32(i / int(b.Width)), Col: uint32(i % int(b.Width))}
}

// Direction is a compass direction encoded as a bit flag so sets of
// directions can be combined.
type Direction uint8

const (
	North Direction = 1 << iota
	East
	South
	West
)

// Directions lists the four single directions clockwise from North.
var Directions = [4]Direction{North, East, South, West}

// Clockwise rotates every flag in d a quarter turn.
func (d Direction) Clockwise() Direction {
	return ((d << 1) | (d >> 3)) & 0x0f
}

// Flip rotates every flag in d half a turn.
func (d Direction) Flip() Direction {
	return ((d << 2) | (d >> 2)) & 0x0f
}

// Has reports whether all flags of o are set in d.
func (d Direction) Has(o Direction) bool {
	return o != 0 && d&o == o
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	case 0:
		return "none"
	}
	var parts []string
	for _, single := range Directions {
		if d.Has(single) {
			parts = append(parts, single.String())
		}
	}
	return strings.Join(parts, "|")
}

// ParseDirection accepts compass names, their initials and up/down/left/right.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n", "up":
		return North, nil
	case "east", "e", "right":
		return East, nil
	case "south", "s", "down":
		return South, nil
	case "west", "w", "left":
		return West, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
