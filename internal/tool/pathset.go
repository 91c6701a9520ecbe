package tool

import "slices"

// PathSet is an insertion-ordered set of search paths.
type PathSet struct {
	items []string
}

// Add appends paths not already present. Existing entries keep their
// position.
func (s *PathSet) Add(paths ...string) {
	for _, p := range paths {
		if !slices.Contains(s.items, p) {
			s.items = append(s.items, p)
		}
	}
}

func (s *PathSet) Contains(p string) bool { return slices.Contains(s.items, p) }

func (s *PathSet) Len() int { return len(s.items) }

func (s *PathSet) Slice() []string { return slices.Clone(s.items) }
