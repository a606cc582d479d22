package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies one occupant's chain. Keys carry the generation of the
// slot they were issued for, so a key kept past its chain's removal never
// resolves to whatever reuses the slot later. The zero Key is never valid.
type Key struct {
	index uint32
	gen   uint32
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.gen == 0
}

func (k Key) String() string {
	if k.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%d", k.index, k.gen)
}

// ParseKey reads the form produced by Key.String.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Key{}, nil
	}
	idx, gen, ok := strings.Cut(s, ".")
	if !ok {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return Key{}, fmt.Errorf("invalid key %q", s)
	}
	return Key{index: uint32(i), gen: uint32(g)}, nil
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Less orders keys by slot, which is also allocation order for a fresh grid.
func (k Key) Less(o Key) bool {
	if k.index != o.index {
		return k.index < o.index
	}
	return k.gen < o.gen
}
