package molecule

import (
	"errors"
	"reflect"
	"testing"
)

// chainAtoms builds n carbon atoms with ids 1..n
func chainAtoms(n int) []AtomData {
	atoms := make([]AtomData, n)
	for i := 0; i < n; i++ {
		atoms[i] = AtomData{ID: i + 1, Type: 1}
	}
	return atoms
}

// chainBonds bonds ids 1..n into a linear chain
func chainBonds(n int) [][2]int {
	var bonds [][2]int
	for i := 1; i < n; i++ {
		bonds = append(bonds, [2]int{i, i + 1})
	}
	return bonds
}

var elements = []string{"C", "H", "O"}

func TestBuild(t *testing.T) {
	g, err := Build(chainAtoms(4), chainBonds(4), elements)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if g.Len() != 4 {
		t.Errorf("Expected 4 atoms, got %d", g.Len())
	}

	a, ok := g.Atom(2)
	if !ok {
		t.Fatal("Atom 2 not found")
	}
	if a.Element != "C" {
		t.Errorf("Expected element C, got %s", a.Element)
	}
	if !reflect.DeepEqual(a.Neighbors, []int{1, 3}) {
		t.Errorf("Expected neighbors [1 3], got %v", a.Neighbors)
	}

	if !g.HasBond(1, 2) || g.HasBond(1, 3) {
		t.Error("Bond adjacency does not match input")
	}
}

func TestBuildDanglingBond(t *testing.T) {
	_, err := Build(chainAtoms(2), [][2]int{{1, 2}, {2, 99}}, elements)
	if err == nil {
		t.Fatal("Expected error for bond to missing atom")
	}

	var dangling *DanglingBondError
	if !errors.As(err, &dangling) {
		t.Fatalf("Expected DanglingBondError, got %T: %v", err, err)
	}
	if dangling.MissingID != 99 {
		t.Errorf("Expected missing id 99, got %d", dangling.MissingID)
	}
}

func TestBuildDuplicateAtom(t *testing.T) {
	atoms := []AtomData{{ID: 1, Type: 1}, {ID: 1, Type: 1}}
	if _, err := Build(atoms, nil, elements); err == nil {
		t.Error("Expected error for duplicate atom id")
	}
}

func TestBuildUnknownType(t *testing.T) {
	atoms := []AtomData{{ID: 1, Type: 7}}
	if _, err := Build(atoms, nil, elements); err == nil {
		t.Error("Expected error for type with no declared element")
	}
}

func TestNeighborShellsChain(t *testing.T) {
	g, err := Build(chainAtoms(5), chainBonds(5), elements)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.SecondNeighbors(1); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("SecondNeighbors(1) = %v, want [3]", got)
	}
	if got := g.ThirdNeighbors(1); !reflect.DeepEqual(got, []int{4}) {
		t.Errorf("ThirdNeighbors(1) = %v, want [4]", got)
	}
	if got := g.SecondNeighbors(3); !reflect.DeepEqual(got, []int{1, 5}) {
		t.Errorf("SecondNeighbors(3) = %v, want [1 5]", got)
	}
	if got := g.NeighborsWithin(1, 3); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Errorf("NeighborsWithin(1, 3) = %v, want [2 3 4]", got)
	}
}

func TestNeighborShellsRing(t *testing.T) {
	// six-membered ring: shells must not wrap around past each other
	bonds := append(chainBonds(6), [2]int{6, 1})
	g, err := Build(chainAtoms(6), bonds, elements)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.SecondNeighbors(1); !reflect.DeepEqual(got, []int{3, 5}) {
		t.Errorf("SecondNeighbors(1) = %v, want [3 5]", got)
	}
	if got := g.ThirdNeighbors(1); !reflect.DeepEqual(got, []int{4}) {
		t.Errorf("ThirdNeighbors(1) = %v, want [4]", got)
	}
	// the whole ring is reachable within 3 hops
	if got := g.NeighborsWithin(1, 3); !reflect.DeepEqual(got, []int{2, 3, 4, 5, 6}) {
		t.Errorf("NeighborsWithin(1, 3) = %v, want [2 3 4 5 6]", got)
	}
}

func TestIsHydrogen(t *testing.T) {
	atoms := []AtomData{{ID: 1, Type: 1}, {ID: 2, Type: 2}}
	g, err := Build(atoms, [][2]int{{1, 2}}, elements)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if g.IsHydrogen(1) {
		t.Error("Atom 1 is carbon, not hydrogen")
	}
	if !g.IsHydrogen(2) {
		t.Error("Atom 2 should be hydrogen")
	}
}
