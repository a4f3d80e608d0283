// Package boundary grows the retained atom set of a reaction template out to
// a chemically stable edge. An atom whose local chemistry changed between the
// pre and post structures must not sit exactly on the template boundary, or
// the template would omit the context the simulation engine needs to
// recognize the reaction; the hop budget decays with distance from the
// actual type change.
package boundary

import (
	"sort"

	"github.com/yryd/automapper/pkg/logging"
	"github.com/yryd/automapper/pkg/molecule"
	"github.com/yryd/automapper/pkg/search"
)

// RingMembers tests whether a bonding atom sits on a ring: the atom is cyclic
// if any of its first neighbors can reach it back with the direct bond
// between them broken. The returned set holds the cycle's atoms plus their
// first neighbors (the atoms that must be preserved to keep the ring whole),
// or nil when the atom is not a ring member.
func RingMembers(g *molecule.Graph, atom int) []int {
	for _, start := range g.Neighbors(atom) {
		path, err := search.ShortestPathAvoiding(g, start, atom, [2]int{atom, start})
		if err != nil {
			continue
		}

		preserved := make(map[int]bool)
		for _, id := range path {
			preserved[id] = true
			for _, nb := range g.Neighbors(id) {
				preserved[nb] = true
			}
		}
		return sortedIDs(preserved)
	}
	return nil
}

// DetectRingOpening decides whether the reaction opens (or closes) a ring:
// a bonding atom is a ring member on one side only. When it is, both seed
// sets are widened with the full ring and its neighbors, mapped across
// structures through the atom pairing, because a partially removed ring
// would make a chemically invalid template.
func DetectRingOpening(preRing, postRing []int, preToPost map[int]int) (preSeed, postSeed map[int]bool, opening bool) {
	preSeed = make(map[int]bool)
	postSeed = make(map[int]bool)

	postToPre := make(map[int]int, len(preToPost))
	for pre, post := range preToPost {
		postToPre[post] = pre
	}

	switch {
	case preRing != nil && postRing == nil:
		logging.Debug("reaction classified as ring opening", "ringAtoms", len(preRing))
		for _, id := range preRing {
			preSeed[id] = true
			if post, ok := preToPost[id]; ok {
				postSeed[post] = true
			}
		}
		opening = true

	case postRing != nil && preRing == nil:
		logging.Debug("reaction classified as ring closing", "ringAtoms", len(postRing))
		for _, id := range postRing {
			postSeed[id] = true
			if pre, ok := postToPre[id]; ok {
				preSeed[pre] = true
			}
		}
		opening = true
	}

	return preSeed, postSeed, opening
}

// InitialRetention grows the seed set with the reacting-bond path atoms and
// everything within hops bonds of them
func InitialRetention(g *molecule.Graph, pathAtoms []int, seed map[int]bool, hops int) map[int]bool {
	set := make(map[int]bool, len(seed))
	for id := range seed {
		set[id] = true
	}
	for _, id := range pathAtoms {
		set[id] = true
		for _, nb := range g.NeighborsWithin(id, hops) {
			set[nb] = true
		}
	}
	return set
}

// EdgeAtoms returns the members of set that sit on the template boundary:
// non-hydrogen atoms with at least one direct neighbor outside the set.
// Hydrogens are never edge atoms since their environment is fully determined
// by their single heavy-atom neighbor. Exempt atoms (declared deletions and
// creations) are terminal by construction and skipped.
func EdgeAtoms(g *molecule.Graph, set map[int]bool, exempt map[int]bool) []int {
	var edges []int
	for id := range set {
		if g.IsHydrogen(id) || exempt[id] {
			continue
		}
		for _, nb := range g.Neighbors(id) {
			if !set[nb] {
				edges = append(edges, id)
				break
			}
		}
	}
	sort.Ints(edges)
	return edges
}

// VerifyEdges checks every pre edge atom against its post counterpart and
// returns the additional hop budget each unstable edge needs: 3 when the
// edge atom's own type changed, 2 when a first neighbor's type changed,
// 1 when a second neighbor's. Stable edges are omitted. Exempt atoms
// (declared deletions) have no counterpart to compare and are skipped in
// the neighbor checks.
func VerifyEdges(edges []int, preToPost map[int]int, pre, post *molecule.Graph, exempt map[int]bool) map[int]int {
	typeChanged := func(preID int) bool {
		postID, ok := preToPost[preID]
		if !ok {
			// no counterpart means the atom does not survive the reaction,
			// which is the strongest possible environment change
			return true
		}
		preAtom, okPre := pre.Atom(preID)
		postAtom, okPost := post.Atom(postID)
		if !okPre || !okPost {
			return true
		}
		return preAtom.Type != postAtom.Type
	}

	extend := make(map[int]int)
	for _, edge := range edges {
		if typeChanged(edge) {
			extend[edge] = 3
			continue
		}

		changed := false
		for _, nb := range pre.Neighbors(edge) {
			if exempt[nb] {
				continue
			}
			if typeChanged(nb) {
				extend[edge] = 2
				changed = true
				break
			}
		}
		if changed {
			continue
		}

		for _, nb := range pre.SecondNeighbors(edge) {
			if exempt[nb] {
				continue
			}
			if typeChanged(nb) {
				extend[edge] = 1
				break
			}
		}
	}
	return extend
}

// Stabilizer runs the edge stabilization fixpoint for one reaction
type Stabilizer struct {
	Pre       *molecule.Graph
	Post      *molecule.Graph
	PreToPost map[int]int
	Exempt    map[int]bool // pre-side atoms outside boundary reasoning
}

// Stabilize expands the working sets until a verification pass requests zero
// further expansions. The sets only ever grow and are bounded by the atom
// count, so the loop terminates. Returns the final pre edge atoms and the
// number of expansion passes that were needed.
func (s *Stabilizer) Stabilize(preSet, postSet map[int]bool) (preEdges []int, passes int) {
	for {
		preEdges = EdgeAtoms(s.Pre, preSet, s.Exempt)
		extend := VerifyEdges(preEdges, s.PreToPost, s.Pre, s.Post, s.Exempt)
		if len(extend) == 0 {
			return preEdges, passes
		}

		passes++
		logging.Debug("expanding template boundary", "pass", passes, "unstableEdges", len(extend))
		s.expand(extend, preSet, postSet)

		if passes > s.Pre.Len() {
			// cannot happen while the sets grow monotonically
			logging.Error("boundary stabilization exceeded atom count", "passes", passes)
			return preEdges, passes
		}
	}
}

// expand widens both working sets around each unstable edge atom by its hop
// budget, carrying the pre-side expansion to the post side through the pairing
func (s *Stabilizer) expand(extend map[int]int, preSet, postSet map[int]bool) {
	for edge, hops := range extend {
		for _, id := range s.Pre.NeighborsWithin(edge, hops) {
			preSet[id] = true
			if post, ok := s.PreToPost[id]; ok {
				postSet[post] = true
			}
		}
		if postEdge, ok := s.PreToPost[edge]; ok {
			for _, id := range s.Post.NeighborsWithin(postEdge, hops) {
				postSet[id] = true
			}
		}
	}
}

func sortedIDs(set map[int]bool) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
