// Package mapping reconciles the stabilized pre and post working sets into
// the ordered atom correspondence table consumed by the simulation engine's
// reaction feature.
package mapping

import (
	"fmt"
	"sort"
)

// Kind classifies one mapping entry
type Kind int

const (
	// KindPaired is an atom that persists through the reaction
	KindPaired Kind = iota
	// KindDelete is an atom present only in the pre-reaction template
	KindDelete
	// KindCreate is an atom present only in the post-reaction template
	KindCreate
)

// Entry is one row of the correspondence table. External ids are 0 for the
// missing side of delete and create entries; local ids are contiguous and
// start at 1 within each template.
type Entry struct {
	Kind      Kind
	PreID     int
	PostID    int
	PreLocal  int
	PostLocal int
	Byproduct bool // disconnected fragment, aligned only by its own identity
}

// Record is the final reindexed mapping for one reaction
type Record struct {
	Entries []Entry

	// local renumbering tables, external id -> local id
	PreLocal  map[int]int
	PostLocal map[int]int
}

// CountMismatchError reports that the pre and post templates cannot be
// structurally symmetric: after removing declared deletions and creations the
// atom counts differ, or atoms remain with no counterpart.
type CountMismatchError struct {
	PreCount      int
	PostCount     int
	UnmatchedPre  []int
	UnmatchedPost []int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("pre/post atom counts differ after removing deletions and creations: %d vs %d (unmatched pre %v, unmatched post %v)",
		e.PreCount, e.PostCount, e.UnmatchedPre, e.UnmatchedPost)
}

// Emit builds the Mapping Record from the stabilized working sets. Pairs give
// the pre-to-post correspondence of persistent atoms; deletes are pre-only
// ids, creates post-only ids, byproducts post-side disconnected fragments.
// Nothing is produced unless every retained atom is accounted for exactly
// once, since a silently wrong mapping would corrupt the downstream run.
func Emit(pairs [][2]int, preSet, postSet map[int]bool, deletes, creates, byproducts []int) (*Record, error) {
	deleteSet := toSet(deletes)
	createSet := toSet(creates)
	byproductSet := toSet(byproducts)

	// pairs restricted to atoms retained on both sides, ordered by pre id
	var retained [][2]int
	preMatched := make(map[int]bool)
	postMatched := make(map[int]bool)
	for _, pair := range pairs {
		pre, post := pair[0], pair[1]
		if deleteSet[pre] || createSet[post] {
			continue
		}
		if preSet[pre] && postSet[post] {
			retained = append(retained, pair)
			preMatched[pre] = true
			postMatched[post] = true
		}
	}
	sort.Slice(retained, func(i, j int) bool { return retained[i][0] < retained[j][0] })

	// symmetry check: every retained atom must be a pair member, a declared
	// deletion, or a declared creation
	var unmatchedPre, unmatchedPost []int
	for id := range preSet {
		if !preMatched[id] && !deleteSet[id] {
			unmatchedPre = append(unmatchedPre, id)
		}
	}
	for id := range postSet {
		if !postMatched[id] && !createSet[id] {
			unmatchedPost = append(unmatchedPost, id)
		}
	}
	preCount := len(preSet) - len(deletes)
	postCount := len(postSet) - len(creates)
	if preCount != postCount || len(unmatchedPre) > 0 || len(unmatchedPost) > 0 {
		sort.Ints(unmatchedPre)
		sort.Ints(unmatchedPost)
		return nil, &CountMismatchError{
			PreCount:      preCount,
			PostCount:     postCount,
			UnmatchedPre:  unmatchedPre,
			UnmatchedPost: unmatchedPost,
		}
	}

	rec := &Record{
		PreLocal:  make(map[int]int),
		PostLocal: make(map[int]int),
	}

	// persistent atoms share a local id and relative order on both sides
	local := 0
	for _, pair := range retained {
		local++
		rec.PreLocal[pair[0]] = local
		rec.PostLocal[pair[1]] = local
		rec.Entries = append(rec.Entries, Entry{
			Kind:      KindPaired,
			PreID:     pair[0],
			PostID:    pair[1],
			PreLocal:  local,
			PostLocal: local,
			Byproduct: byproductSet[pair[1]],
		})
	}

	// deletions continue the pre numbering, creations the post numbering
	preLocal := local
	for _, id := range sortedCopy(deletes) {
		preLocal++
		rec.PreLocal[id] = preLocal
		rec.Entries = append(rec.Entries, Entry{
			Kind:     KindDelete,
			PreID:    id,
			PreLocal: preLocal,
		})
	}

	postLocal := local
	for _, id := range sortedCopy(creates) {
		postLocal++
		rec.PostLocal[id] = postLocal
		rec.Entries = append(rec.Entries, Entry{
			Kind:      KindCreate,
			PostID:    id,
			PostLocal: postLocal,
			Byproduct: byproductSet[id],
		})
	}

	return rec, nil
}

// Renumber translates external atom ids through a local numbering table,
// preserving order. Unknown ids are an input inconsistency.
func Renumber(ids []int, table map[int]int) ([]int, error) {
	if ids == nil {
		return nil, nil
	}
	out := make([]int, len(ids))
	for i, id := range ids {
		local, ok := table[id]
		if !ok {
			return nil, fmt.Errorf("atom %d has no local id in the template", id)
		}
		out[i] = local
	}
	return out, nil
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func sortedCopy(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}
