package jpostcode

import "fmt"

// nameTable interns display names into dense IDs assigned in first-seen
// order, starting at 0. It belongs to one Builder and is not safe for
// concurrent use.
type nameTable[T ~uint16 | ~uint32] struct {
	kind   string
	lookup []string     // id -> name
	index  map[string]T // name -> id
}

func newNameTable[T ~uint16 | ~uint32](kind string, capacity int) *nameTable[T] {
	return &nameTable[T]{
		kind:   kind,
		lookup: make([]string, 0, capacity),
		index:  make(map[string]T, capacity),
	}
}

// intern returns the ID for name, assigning the next sequential ID the first
// time the name is seen. It fails once the ID space of T is exhausted rather
// than wrapping around and aliasing two names.
func (nt *nameTable[T]) intern(name string) (T, error) {
	if id, ok := nt.index[name]; ok {
		return id, nil
	}
	maxVal := uint64(^T(0))
	if uint64(len(nt.lookup)) > maxVal {
		return 0, fmt.Errorf("%w: %s table exceeds %d names", ErrBuildInconsistency, nt.kind, maxVal+1)
	}
	id := T(len(nt.lookup))
	nt.lookup = append(nt.lookup, name)
	nt.index[name] = id
	return id, nil
}

func (nt *nameTable[T]) count() int {
	return len(nt.lookup)
}

// verify checks that the table is a bijection: every name has exactly one
// ID and every ID names exactly one string.
func (nt *nameTable[T]) verify() error {
	if len(nt.index) != len(nt.lookup) {
		return fmt.Errorf("%w: %s names duplicated (%d names, %d ids)",
			ErrBuildInconsistency, nt.kind, len(nt.index), len(nt.lookup))
	}
	for name, id := range nt.index {
		if int(id) >= len(nt.lookup) || nt.lookup[id] != name {
			return fmt.Errorf("%w: %s id %d does not map back to %q",
				ErrBuildInconsistency, nt.kind, id, name)
		}
	}
	return nil
}

// names returns the ID-ordered name slice. The table must not be used after.
func (nt *nameTable[T]) names() []string {
	return nt.lookup
}
