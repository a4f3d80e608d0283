// Package search provides breadth-first path queries over a molecule graph.
// Atom graphs are full of rings, so the visited-set discipline here is what
// keeps every query terminating.
package search

import (
	"fmt"

	"github.com/yryd/automapper/pkg/molecule"
)

// NoPathError reports that two atoms sit in disconnected components
type NoPathError struct {
	Start, Goal int
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no bond path between atoms %d and %d: disconnected components", e.Start, e.Goal)
}

// ShortestPath returns the shortest bond path from start to goal, inclusive
// of both endpoints. When several shortest paths exist any one may be
// returned; neighbors are visited in ascending atom-id order so the result is
// deterministic for a given graph.
func ShortestPath(g *molecule.Graph, start, goal int) ([]int, error) {
	return shortestPath(g, start, goal, [2]int{0, 0})
}

// ShortestPathAvoiding behaves like ShortestPath but ignores the direct bond
// between avoid[0] and avoid[1]. Used to probe for an alternate route around
// a reacting bond when testing ring membership.
func ShortestPathAvoiding(g *molecule.Graph, start, goal int, avoid [2]int) ([]int, error) {
	return shortestPath(g, start, goal, avoid)
}

// PathExists reports whether any bond path connects start and goal
func PathExists(g *molecule.Graph, start, goal int) bool {
	_, err := ShortestPath(g, start, goal)
	return err == nil
}

func shortestPath(g *molecule.Graph, start, goal int, avoid [2]int) ([]int, error) {
	if !g.Contains(start) {
		return nil, fmt.Errorf("path search: atom %d is not in the structure", start)
	}
	if !g.Contains(goal) {
		return nil, fmt.Errorf("path search: atom %d is not in the structure", goal)
	}
	if start == goal {
		return []int{start}, nil
	}

	skip := func(from, to int) bool {
		return (from == avoid[0] && to == avoid[1]) || (from == avoid[1] && to == avoid[0])
	}

	discovered := map[int]bool{start: true}
	parents := make(map[int]int)
	queue := []int{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range g.Neighbors(current) {
			if discovered[neighbor] || skip(current, neighbor) {
				continue
			}
			discovered[neighbor] = true
			parents[neighbor] = current

			if neighbor == goal {
				return assemblePath(parents, start, goal), nil
			}
			queue = append(queue, neighbor)
		}
	}

	return nil, &NoPathError{Start: start, Goal: goal}
}

// assemblePath walks the parent table back from goal to start and reverses
func assemblePath(parents map[int]int, start, goal int) []int {
	var reversed []int
	for at := goal; at != start; at = parents[at] {
		reversed = append(reversed, at)
	}
	reversed = append(reversed, start)

	path := make([]int, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}
