package search

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yryd/automapper/pkg/molecule"
)

func buildGraph(t *testing.T, n int, bonds [][2]int) *molecule.Graph {
	t.Helper()
	atoms := make([]molecule.AtomData, n)
	for i := 0; i < n; i++ {
		atoms[i] = molecule.AtomData{ID: i + 1, Type: 1}
	}
	g, err := molecule.Build(atoms, bonds, []string{"C"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return g
}

func ringBonds(n int) [][2]int {
	var bonds [][2]int
	for i := 1; i < n; i++ {
		bonds = append(bonds, [2]int{i, i + 1})
	}
	return append(bonds, [2]int{n, 1})
}

func TestShortestPathDirectBond(t *testing.T) {
	g := buildGraph(t, 2, [][2]int{{1, 2}})

	path, err := ShortestPath(g, 1, 2)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !reflect.DeepEqual(path, []int{1, 2}) {
		t.Errorf("Expected path [1 2], got %v", path)
	}
}

func TestShortestPathSameAtom(t *testing.T) {
	g := buildGraph(t, 1, nil)

	path, err := ShortestPath(g, 1, 1)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	if !reflect.DeepEqual(path, []int{1}) {
		t.Errorf("Expected path [1], got %v", path)
	}
}

func TestShortestPathRing(t *testing.T) {
	g := buildGraph(t, 6, ringBonds(6))

	path, err := ShortestPath(g, 1, 4)
	if err != nil {
		t.Fatalf("ShortestPath() error = %v", err)
	}
	// both ways around the ring are length 3; ascending-id discovery order
	// picks the route through atom 2 (a deterministic choice, not a contract
	// downstream logic relies on)
	if !reflect.DeepEqual(path, []int{1, 2, 3, 4}) {
		t.Errorf("Expected path [1 2 3 4], got %v", path)
	}
	if len(path) != 4 {
		t.Errorf("Expected shortest path of 3 bonds, got %d", len(path)-1)
	}
}

func TestShortestPathDisconnected(t *testing.T) {
	// two separate fragments
	g := buildGraph(t, 4, [][2]int{{1, 2}, {3, 4}})

	_, err := ShortestPath(g, 1, 4)
	if err == nil {
		t.Fatal("Expected error for disconnected atoms")
	}

	var noPath *NoPathError
	if !errors.As(err, &noPath) {
		t.Fatalf("Expected NoPathError, got %T: %v", err, err)
	}
	if noPath.Start != 1 || noPath.Goal != 4 {
		t.Errorf("Expected endpoints 1 and 4, got %d and %d", noPath.Start, noPath.Goal)
	}
}

func TestShortestPathMissingAtom(t *testing.T) {
	g := buildGraph(t, 2, [][2]int{{1, 2}})
	if _, err := ShortestPath(g, 1, 99); err == nil {
		t.Error("Expected error for atom not in structure")
	}
}

func TestShortestPathAvoidingRing(t *testing.T) {
	g := buildGraph(t, 6, ringBonds(6))

	// ignoring the 1-2 bond forces the long way around the ring
	path, err := ShortestPathAvoiding(g, 1, 2, [2]int{1, 2})
	if err != nil {
		t.Fatalf("ShortestPathAvoiding() error = %v", err)
	}
	if !reflect.DeepEqual(path, []int{1, 6, 5, 4, 3, 2}) {
		t.Errorf("Expected path [1 6 5 4 3 2], got %v", path)
	}
}

func TestShortestPathAvoidingChain(t *testing.T) {
	// on a chain there is no alternate route around a removed bond
	g := buildGraph(t, 3, [][2]int{{1, 2}, {2, 3}})

	_, err := ShortestPathAvoiding(g, 1, 2, [2]int{1, 2})
	var noPath *NoPathError
	if !errors.As(err, &noPath) {
		t.Fatalf("Expected NoPathError, got %v", err)
	}
}

func TestPathExists(t *testing.T) {
	g := buildGraph(t, 4, [][2]int{{1, 2}, {3, 4}})

	if !PathExists(g, 1, 2) {
		t.Error("Expected path between bonded atoms")
	}
	if PathExists(g, 1, 3) {
		t.Error("Expected no path across fragments")
	}
}
