package molecule

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
)

// Atom represents a single atom in one structure (pre or post reaction).
// Fields are fixed once the owning Graph is built.
type Atom struct {
	ID        int
	Type      int
	Element   string
	Charge    float64
	Pos       [3]float64
	Neighbors []int // directly bonded atom ids, ascending
}

// AtomData is the builder input for one atom, as loaded from a structure file
type AtomData struct {
	ID     int
	Type   int
	Charge float64
	Pos    [3]float64
}

// DanglingBondError reports a bond that references an atom missing from the
// structure. Always a malformed-input condition.
type DanglingBondError struct {
	Bond      [2]int
	MissingID int
}

func (e *DanglingBondError) Error() string {
	return fmt.Sprintf("bond %d-%d references atom %d which is not in the structure",
		e.Bond[0], e.Bond[1], e.MissingID)
}

// Graph is the bonded-atom graph for one structure. Atoms are owned by the
// graph and looked up by id; adjacency is held in a gonum undirected graph so
// that all traversal is by id lookup into a single owning table.
type Graph struct {
	atoms map[int]*Atom
	ug    *simple.UndirectedGraph

	// lazily computed neighbor shells, keyed by atom id
	secondShells map[int][]int
	thirdShells  map[int][]int
}

// Build constructs a Graph from atom data and bond pairs. Element symbols are
// resolved through elementsByType, indexed by type id starting at 1. Every
// bond must reference two atoms present in the input, else a
// DanglingBondError is returned.
func Build(atoms []AtomData, bonds [][2]int, elementsByType []string) (*Graph, error) {
	g := &Graph{
		atoms:        make(map[int]*Atom, len(atoms)),
		ug:           simple.NewUndirectedGraph(),
		secondShells: make(map[int][]int),
		thirdShells:  make(map[int][]int),
	}

	for _, a := range atoms {
		if a.Type < 1 || a.Type > len(elementsByType) {
			return nil, fmt.Errorf("atom %d has type %d but only %d elements were declared",
				a.ID, a.Type, len(elementsByType))
		}
		if _, exists := g.atoms[a.ID]; exists {
			return nil, fmt.Errorf("duplicate atom id %d", a.ID)
		}
		g.atoms[a.ID] = &Atom{
			ID:      a.ID,
			Type:    a.Type,
			Element: elementsByType[a.Type-1],
			Charge:  a.Charge,
			Pos:     a.Pos,
		}
		g.ug.AddNode(simple.Node(a.ID))
	}

	for _, b := range bonds {
		for _, id := range []int{b[0], b[1]} {
			if _, ok := g.atoms[id]; !ok {
				return nil, &DanglingBondError{Bond: b, MissingID: id}
			}
		}
		if b[0] == b[1] {
			return nil, fmt.Errorf("bond %d-%d connects an atom to itself", b[0], b[1])
		}
		if !g.ug.HasEdgeBetween(int64(b[0]), int64(b[1])) {
			g.ug.SetEdge(g.ug.NewEdge(simple.Node(b[0]), simple.Node(b[1])))
			g.atoms[b[0]].Neighbors = append(g.atoms[b[0]].Neighbors, b[1])
			g.atoms[b[1]].Neighbors = append(g.atoms[b[1]].Neighbors, b[0])
		}
	}

	for _, atom := range g.atoms {
		sort.Ints(atom.Neighbors)
	}

	return g, nil
}

// Atom returns the atom with the given id
func (g *Graph) Atom(id int) (*Atom, bool) {
	a, ok := g.atoms[id]
	return a, ok
}

// Contains reports whether the structure holds the given atom id
func (g *Graph) Contains(id int) bool {
	_, ok := g.atoms[id]
	return ok
}

// Len returns the number of atoms in the structure
func (g *Graph) Len() int {
	return len(g.atoms)
}

// IDs returns all atom ids in ascending order
func (g *Graph) IDs() []int {
	ids := make([]int, 0, len(g.atoms))
	for id := range g.atoms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Neighbors returns the directly bonded atom ids, ascending
func (g *Graph) Neighbors(id int) []int {
	a, ok := g.atoms[id]
	if !ok {
		return nil
	}
	out := make([]int, len(a.Neighbors))
	copy(out, a.Neighbors)
	return out
}

// HasBond reports whether atoms a and b are directly bonded
func (g *Graph) HasBond(a, b int) bool {
	return g.ug.HasEdgeBetween(int64(a), int64(b))
}

// IsHydrogen reports whether the atom is a hydrogen-type atom
func (g *Graph) IsHydrogen(id int) bool {
	a, ok := g.atoms[id]
	return ok && a.Element == "H"
}

// shell computes the set of atoms exactly n hops from id, excluding the
// origin and every nearer shell
func (g *Graph) shell(id int, n int) []int {
	seen := map[int]bool{id: true}
	frontier := []int{id}
	var current []int

	for hop := 0; hop < n; hop++ {
		current = nil
		for _, atom := range frontier {
			for _, nb := range g.Neighbors(atom) {
				if !seen[nb] {
					seen[nb] = true
					current = append(current, nb)
				}
			}
		}
		frontier = current
	}

	sort.Ints(current)
	return current
}

// SecondNeighbors returns atoms exactly two bonds from id, excluding the
// origin and its first neighbors. Computed on first use and cached.
func (g *Graph) SecondNeighbors(id int) []int {
	if cached, ok := g.secondShells[id]; ok {
		return cached
	}
	s := g.shell(id, 2)
	g.secondShells[id] = s
	return s
}

// ThirdNeighbors returns atoms exactly three bonds from id
func (g *Graph) ThirdNeighbors(id int) []int {
	if cached, ok := g.thirdShells[id]; ok {
		return cached
	}
	s := g.shell(id, 3)
	g.thirdShells[id] = s
	return s
}

// NeighborsWithin returns the union of all shells from 1 up to radius hops
// from id, excluding the origin. Radius is clamped to at least 1.
func (g *Graph) NeighborsWithin(id int, radius int) []int {
	if radius < 1 {
		radius = 1
	}
	seen := map[int]bool{id: true}
	frontier := []int{id}
	var out []int

	for hop := 0; hop < radius; hop++ {
		var next []int
		for _, atom := range frontier {
			for _, nb := range g.Neighbors(atom) {
				if !seen[nb] {
					seen[nb] = true
					next = append(next, nb)
					out = append(out, nb)
				}
			}
		}
		frontier = next
	}

	sort.Ints(out)
	return out
}
