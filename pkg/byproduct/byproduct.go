// Package byproduct identifies retained atoms that are disconnected from the
// reacting fragment: leaving groups and small eliminated molecules. They are
// chemically required to balance the reaction, so they stay in the template,
// but they must never be aligned 1:1 against an unrelated atom on the other
// side of the reaction.
package byproduct

import (
	"sort"

	"github.com/yryd/automapper/pkg/molecule"
)

// Find returns the members of set with no bond path to anchor that stays
// inside set. The anchor is one of the reacting-bond atoms; a single anchor
// suffices because the reacting pair is connected by definition.
func Find(g *molecule.Graph, set map[int]bool, anchor int) []int {
	if !set[anchor] {
		return nil
	}

	// flood fill from the anchor, restricted to set members
	reached := map[int]bool{anchor: true}
	frontier := []int{anchor}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, nb := range g.Neighbors(current) {
			if set[nb] && !reached[nb] {
				reached[nb] = true
				frontier = append(frontier, nb)
			}
		}
	}

	var byproducts []int
	for id := range set {
		if !reached[id] {
			byproducts = append(byproducts, id)
		}
	}
	sort.Ints(byproducts)
	return byproducts
}
