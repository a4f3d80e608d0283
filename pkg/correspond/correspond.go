// Package correspond reconstructs the pre-to-post atom pairing for a
// reaction from connectivity and element data alone. The two structure files
// are numbered independently, so the pairing is discovered by walking
// outward from the known bonding-atom pairs and matching neighbors by
// element, falling back to neighbor-element fingerprints for symmetric
// candidates and to a bounded reconciliation loop for atoms the walk cannot
// reach (detached byproducts, rearranged fragments).
package correspond

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yryd/automapper/pkg/logging"
	"github.com/yryd/automapper/pkg/molecule"
)

const maxReconcilePasses = 10

// Matcher holds the in-progress pairing state for one reaction
type Matcher struct {
	pre, post         *molecule.Graph
	preBond, postBond [2]int

	// atoms outside the pairing: declared deletions (pre) and creations (post)
	excludePre  map[int]bool
	excludePost map[int]bool

	pairs      [][2]int
	preMapped  map[int]bool
	postMapped map[int]bool
	queue      [][2]int
}

// Run discovers the pre-to-post pairing. Deletes (pre-only) and creates
// (post-only) are excluded up front; every other atom must end up paired or
// the declared reaction is inconsistent.
func Run(pre, post *molecule.Graph, preBond, postBond [2]int, deletes, creates []int) ([][2]int, error) {
	m := &Matcher{
		pre:         pre,
		post:        post,
		preBond:     preBond,
		postBond:    postBond,
		excludePre:  toSet(deletes),
		excludePost: toSet(creates),
		preMapped:   make(map[int]bool),
		postMapped:  make(map[int]bool),
	}

	// the caller's bonding atoms are the only pairing known a priori
	for i := 0; i < 2; i++ {
		m.record(preBond[i], postBond[i])
		m.queue = append(m.queue, [2]int{preBond[i], postBond[i]})
		logging.Debug("paired bonding atoms", "pre", preBond[i], "post", postBond[i])
	}

	m.drainQueue()

	inference := false
	for pass := 1; pass <= maxReconcilePasses; pass++ {
		missingPre := m.unmappedPre()
		if len(missingPre) == 0 {
			break
		}
		before := len(missingPre)

		m.reconcileMissing(missingPre, m.unmappedPost(), inference)
		m.drainQueue()

		// only infer when a pass stalls, so unambiguous matches always win
		inference = len(m.unmappedPre()) == before
	}

	if missing := m.unmappedPre(); len(missing) > 0 {
		return nil, fmt.Errorf("correspondence search could not pair pre atoms %v", missing)
	}
	if missing := m.unmappedPost(); len(missing) > 0 {
		return nil, fmt.Errorf("correspondence search could not pair post atoms %v", missing)
	}

	sort.Slice(m.pairs, func(i, j int) bool { return m.pairs[i][0] < m.pairs[j][0] })
	return m.pairs, nil
}

func (m *Matcher) record(preID, postID int) {
	m.pairs = append(m.pairs, [2]int{preID, postID})
	m.preMapped[preID] = true
	m.postMapped[postID] = true
}

// drainQueue matches the unmapped neighbors of each queued pair
func (m *Matcher) drainQueue() {
	for len(m.queue) > 0 {
		pair := m.queue[0]
		m.queue = m.queue[1:]
		m.matchNeighbors(pair[0], pair[1])
	}
}

// matchNeighbors pairs the unmapped neighbors of a known pre/post atom pair
// by element occurrence
func (m *Matcher) matchNeighbors(preID, postID int) {
	preNbrs := m.openNeighbors(m.pre, preID, m.preMapped, m.excludePre)
	postNbrs := m.openNeighbors(m.post, postID, m.postMapped, m.excludePost)

	// when an element occurs a different number of times on the two sides,
	// matching it here would be a guess; defer those atoms to reconciliation
	allowed := allowedElements(m.elements(m.pre, preNbrs), m.elements(m.post, postNbrs))

	for _, preNbr := range preNbrs {
		element := m.atomElement(m.pre, preNbr)
		candidates := filterByElement(m.post, postNbrs, element)

		switch {
		case !allowed[element] && element != "H":
			continue

		case len(candidates) == 0:
			continue

		case len(candidates) == 1:
			m.match(preNbr, candidates[0], &postNbrs)
			logging.Debug("paired by single element occurrence", "pre", preNbr, "post", candidates[0])

		case element == "H":
			// hydrogens on the same heavy atom are interchangeable
			m.match(preNbr, candidates[len(candidates)-1], &postNbrs)
			logging.Debug("paired by hydrogen symmetry", "pre", preNbr, "post", candidates[len(candidates)-1])

		default:
			if postNbr, ok := m.compareSymmetric(candidates, preNbr, true); ok {
				m.match(preNbr, postNbr, &postNbrs)
			}
		}
	}
}

// match records a pair, removes the post atom from the open pool, and queues
// heavy atoms for further neighbor matching
func (m *Matcher) match(preID, postID int, openPost *[]int) {
	m.record(preID, postID)
	for i, id := range *openPost {
		if id == postID {
			*openPost = append((*openPost)[:i], (*openPost)[i+1:]...)
			break
		}
	}
	if m.atomElement(m.pre, preID) != "H" {
		m.queue = append(m.queue, [2]int{preID, postID})
	}
}

// reconcileMissing pairs atoms the outward walk never reached. Detached
// byproduct fragments always land here since no bond path leads to them.
func (m *Matcher) reconcileMissing(missingPre, missingPost []int, inference bool) {
	for _, preID := range missingPre {
		element := m.atomElement(m.pre, preID)
		candidates := filterByElement(m.post, missingPost, element)

		var postID int
		var ok bool
		switch {
		case len(candidates) == 0:
			logging.Warn("no candidate found for unmapped pre atom", "atom", preID, "element", element)
			continue
		case len(candidates) == 1:
			postID, ok = candidates[0], true
			logging.Debug("paired missing atom by single element occurrence", "pre", preID, "post", postID)
		case element == "H":
			postID, ok = candidates[len(candidates)-1], true
			logging.Debug("paired missing atom by hydrogen symmetry", "pre", preID, "post", postID)
		default:
			postID, ok = m.compareSymmetric(candidates, preID, inference)
		}
		if !ok {
			continue
		}

		m.record(preID, postID)
		if element != "H" {
			m.queue = append(m.queue, [2]int{preID, postID})
		}
		missingPost = remove(missingPost, postID)
	}
}

// compareSymmetric picks among several same-element candidates by comparing
// sorted neighbor-element fingerprints, widening from first to third
// neighbors. A fingerprint only counts when it is unique among candidates.
// With inference enabled, an undecidable tie falls back to the first
// candidate and the user is warned.
func (m *Matcher) compareSymmetric(candidates []int, preID int, inference bool) (int, bool) {
	for level := 1; level <= 3; level++ {
		prints := make([]string, len(candidates))
		counts := make(map[string]int)
		for i, id := range candidates {
			prints[i] = m.fingerprint(m.post, m.postBond, id, level)
			counts[prints[i]]++
		}

		// an empty unique fingerprint means some candidate has no neighbors
		// at this level; the level cannot discriminate
		inconclusive := false
		for fp, n := range counts {
			if n == 1 && fp == "" {
				inconclusive = true
			}
		}
		if inconclusive {
			continue
		}

		want := m.fingerprint(m.pre, m.preBond, preID, level)
		for i, fp := range prints {
			if counts[fp] == 1 && fp == want {
				logging.Debug("paired by neighbor fingerprint", "pre", preID, "post", candidates[i], "level", level)
				return candidates[i], true
			}
		}
	}

	if inference {
		logging.Warn("atom paired by inference, verify the assignment",
			"pre", preID, "post", candidates[0], "candidates", fmt.Sprint(candidates))
		return candidates[0], true
	}
	return 0, false
}

// fingerprint builds the sorted element string of an atom's n-th neighbor
// shell. Bonding atoms are dropped from the second and third shells: their
// environment always differs between pre and post and would poison the
// comparison.
func (m *Matcher) fingerprint(g *molecule.Graph, bond [2]int, id int, level int) string {
	var shell []int
	switch level {
	case 1:
		shell = g.Neighbors(id)
	case 2:
		shell = g.SecondNeighbors(id)
	default:
		shell = g.ThirdNeighbors(id)
	}

	exclude := m.excludePre
	if g == m.post {
		exclude = m.excludePost
	}

	var elems []string
	for _, nb := range shell {
		if exclude[nb] {
			continue
		}
		if level > 1 && (nb == bond[0] || nb == bond[1]) {
			continue
		}
		elems = append(elems, m.atomElement(g, nb))
	}
	sort.Strings(elems)
	return strings.Join(elems, "")
}

// openNeighbors returns an atom's neighbors that are neither mapped yet nor
// excluded from the pairing
func (m *Matcher) openNeighbors(g *molecule.Graph, id int, mapped, exclude map[int]bool) []int {
	var open []int
	for _, nb := range g.Neighbors(id) {
		if !mapped[nb] && !exclude[nb] {
			open = append(open, nb)
		}
	}
	return open
}

func (m *Matcher) unmappedPre() []int {
	return m.unmapped(m.pre, m.preMapped, m.excludePre)
}

func (m *Matcher) unmappedPost() []int {
	return m.unmapped(m.post, m.postMapped, m.excludePost)
}

func (m *Matcher) unmapped(g *molecule.Graph, mapped, exclude map[int]bool) []int {
	var out []int
	for _, id := range g.IDs() {
		if !mapped[id] && !exclude[id] {
			out = append(out, id)
		}
	}
	return out
}

func (m *Matcher) atomElement(g *molecule.Graph, id int) string {
	a, _ := g.Atom(id)
	if a == nil {
		return ""
	}
	return a.Element
}

func (m *Matcher) elements(g *molecule.Graph, ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = m.atomElement(g, id)
	}
	return out
}

// allowedElements marks the elements occurring equally often on both sides.
// Hydrogen is always allowed because hydrogens can be paired by symmetry.
func allowedElements(preElems, postElems []string) map[string]bool {
	preCounts := make(map[string]int)
	postCounts := make(map[string]int)
	for _, e := range preElems {
		preCounts[e]++
	}
	for _, e := range postElems {
		postCounts[e]++
	}

	allowed := make(map[string]bool)
	for e, n := range preCounts {
		allowed[e] = n == postCounts[e]
	}
	allowed["H"] = true
	return allowed
}

func filterByElement(g *molecule.Graph, ids []int, element string) []int {
	var out []int
	for _, id := range ids {
		if a, ok := g.Atom(id); ok && a.Element == element {
			out = append(out, id)
		}
	}
	return out
}

func remove(ids []int, id int) []int {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
