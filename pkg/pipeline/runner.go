// Package pipeline wires the mapping stages together: load structures, build
// graphs, discover the atom pairing, stabilize the template boundary, resolve
// byproducts, and emit the renumbered templates and map file.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/yryd/automapper/pkg/boundary"
	"github.com/yryd/automapper/pkg/byproduct"
	"github.com/yryd/automapper/pkg/config"
	"github.com/yryd/automapper/pkg/correspond"
	"github.com/yryd/automapper/pkg/lammps"
	"github.com/yryd/automapper/pkg/logging"
	"github.com/yryd/automapper/pkg/mapping"
	"github.com/yryd/automapper/pkg/molecule"
	"github.com/yryd/automapper/pkg/search"
)

// Result summarizes one completed mapping run
type Result struct {
	Record      *mapping.Record
	RingOpening bool
	Passes      int // boundary expansion passes until stable

	PreRetained  int
	PostRetained int
	PreTotal     int
	PostTotal    int

	EdgeAtoms  []int // template-local pre ids
	Byproducts []int // external post ids

	PreMoleculePath  string
	PostMoleculePath string
	MapPath          string
}

// Runner executes the mapping pipeline for one configured reaction. The
// mutex serializes runs so watch mode cannot overlap two invocations.
type Runner struct {
	cfg *config.Config
	mu  sync.Mutex
}

// NewRunner creates a pipeline runner
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes the whole pipeline once. No output file is written unless
// every stage succeeds.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.cfg

	// Stage 1: load and build both structure graphs
	logging.InfoContext(ctx, "[1/5] loading structures", "pre", cfg.PreFile, "post", cfg.PostFile)
	preStruct, err := lammps.ReadStructure(filepath.Join(cfg.Directory, cfg.PreFile))
	if err != nil {
		return nil, fmt.Errorf("loading pre structure: %w", err)
	}
	postStruct, err := lammps.ReadStructure(filepath.Join(cfg.Directory, cfg.PostFile))
	if err != nil {
		return nil, fmt.Errorf("loading post structure: %w", err)
	}

	pre, err := molecule.Build(preStruct.Atoms, preStruct.BondPairs(), cfg.Elements)
	if err != nil {
		return nil, fmt.Errorf("building pre graph: %w", err)
	}
	post, err := molecule.Build(postStruct.Atoms, postStruct.BondPairs(), cfg.Elements)
	if err != nil {
		return nil, fmt.Errorf("building post graph: %w", err)
	}

	preBond := cfg.PreBondingAtoms()
	postBond := cfg.PostBondingAtoms()
	for _, id := range []int{preBond[0], preBond[1]} {
		if !pre.Contains(id) {
			return nil, fmt.Errorf("bonding atom %d is not in the pre structure", id)
		}
	}
	for _, id := range []int{postBond[0], postBond[1]} {
		if !post.Contains(id) {
			return nil, fmt.Errorf("bonding atom %d is not in the post structure", id)
		}
	}

	// Stage 2: atom correspondence
	logging.InfoContext(ctx, "[2/5] discovering atom correspondence", "paired", cfg.Paired)
	pairs, err := r.pairing(pre, post, preBond, postBond)
	if err != nil {
		return nil, err
	}
	preToPost := make(map[int]int, len(pairs))
	for _, p := range pairs {
		preToPost[p[0]] = p[1]
	}

	// Stage 3: reacting-bond paths and boundary stabilization
	logging.InfoContext(ctx, "[3/5] stabilizing template boundary", "radius", cfg.Radius)
	prePath, preConnected := bondPath(pre, preBond)
	postPath, postConnected := bondPath(post, postBond)
	if !preConnected && !postConnected {
		// disconnected on both sides means the declared reaction never
		// joins or splits anything
		return nil, &search.NoPathError{Start: preBond[0], Goal: preBond[1]}
	}

	// ring membership is judged per bonding atom: a cyclic pre atom whose
	// post counterpart is acyclic (or the reverse) marks a ring opening
	preSeed := make(map[int]bool)
	postSeed := make(map[int]bool)
	ringOpening := false
	for i := 0; i < 2; i++ {
		preRing := boundary.RingMembers(pre, preBond[i])
		postRing := boundary.RingMembers(post, postBond[i])
		ps, qs, opening := boundary.DetectRingOpening(preRing, postRing, preToPost)
		if opening {
			ringOpening = true
			for id := range ps {
				preSeed[id] = true
			}
			for id := range qs {
				postSeed[id] = true
			}
		}
	}

	// retention radius counts the reacting bond itself, so the shells walked
	// from each path atom are one less
	hops := cfg.Radius - 1
	preSet := boundary.InitialRetention(pre, prePath, preSeed, hops)
	postSet := boundary.InitialRetention(post, postPath, postSeed, hops)

	// declared deletions and creations are always retained
	exempt := make(map[int]bool)
	for _, id := range cfg.DeleteAtoms {
		if !pre.Contains(id) {
			return nil, fmt.Errorf("delete atom %d is not in the pre structure", id)
		}
		preSet[id] = true
		exempt[id] = true
	}
	for _, id := range cfg.CreateAtoms {
		if !post.Contains(id) {
			return nil, fmt.Errorf("create atom %d is not in the post structure", id)
		}
		postSet[id] = true
	}

	stab := &boundary.Stabilizer{Pre: pre, Post: post, PreToPost: preToPost, Exempt: exempt}
	preEdges, passes := stab.Stabilize(preSet, postSet)

	// Stage 4: byproducts and the final mapping
	logging.InfoContext(ctx, "[4/5] resolving byproducts and emitting mapping")
	byproducts := r.byproducts(post, postSet, postBond, preSet, preToPost)

	rec, err := mapping.Emit(pairs, preSet, postSet, cfg.DeleteAtoms, cfg.CreateAtoms, byproducts)
	if err != nil {
		return nil, err
	}

	// Stage 5: write templates and map file
	logging.InfoContext(ctx, "[5/5] writing templates and map file", "map", cfg.MapFileName)
	result := &Result{
		Record:       rec,
		RingOpening:  ringOpening,
		Passes:       passes,
		PreRetained:  len(preSet),
		PostRetained: len(postSet),
		PreTotal:     pre.Len(),
		PostTotal:    post.Len(),
		Byproducts:   byproducts,
	}
	if err := r.write(result, preStruct, postStruct, preSet, postSet, preBond, postBond, preEdges); err != nil {
		return nil, err
	}
	return result, nil
}

// pairing returns the pre-to-post atom correspondence: identity when the
// caller vouches that ids already denote the same physical atoms, otherwise
// the full correspondence search
func (r *Runner) pairing(pre, post *molecule.Graph, preBond, postBond [2]int) ([][2]int, error) {
	cfg := r.cfg
	if !cfg.Paired {
		return correspond.Run(pre, post, preBond, postBond, cfg.DeleteAtoms, cfg.CreateAtoms)
	}

	deletes := toSet(cfg.DeleteAtoms)
	creates := toSet(cfg.CreateAtoms)
	var pairs [][2]int
	for _, id := range pre.IDs() {
		if deletes[id] {
			continue
		}
		if !post.Contains(id) {
			return nil, fmt.Errorf("atom %d exists pre-reaction but not post-reaction and is not a declared deletion", id)
		}
		pairs = append(pairs, [2]int{id, id})
	}
	for _, id := range post.IDs() {
		if !creates[id] && !pre.Contains(id) {
			return nil, fmt.Errorf("atom %d exists post-reaction but not pre-reaction and is not a declared creation", id)
		}
	}
	return pairs, nil
}

// byproducts finds post-side fragments disconnected from the reacting bond,
// folds them into the post working set, and pulls their pre counterparts
// into the pre working set so count symmetry holds
func (r *Runner) byproducts(post *molecule.Graph, postSet map[int]bool, postBond [2]int, preSet map[int]bool, preToPost map[int]int) []int {
	all := make(map[int]bool, post.Len())
	for _, id := range post.IDs() {
		all[id] = true
	}
	found := byproduct.Find(post, all, postBond[0])
	if len(found) == 0 {
		return nil
	}
	logging.Debug("byproduct atoms found", "count", len(found), "atoms", fmt.Sprint(found))

	postToPre := make(map[int]int, len(preToPost))
	for preID, postID := range preToPost {
		postToPre[postID] = preID
	}
	for _, id := range found {
		postSet[id] = true
		if preID, ok := postToPre[id]; ok {
			preSet[preID] = true
		}
	}
	return found
}

func (r *Runner) write(result *Result, preStruct, postStruct *lammps.Structure, preSet, postSet map[int]bool, preBond, postBond [2]int, preEdges []int) error {
	cfg := r.cfg
	rec := result.Record

	preBonding, err := mapping.Renumber(preBond[:], rec.PreLocal)
	if err != nil {
		return fmt.Errorf("renumbering pre bonding atoms: %w", err)
	}
	postBonding, err := mapping.Renumber(postBond[:], rec.PostLocal)
	if err != nil {
		return fmt.Errorf("renumbering post bonding atoms: %w", err)
	}
	deletes, err := mapping.Renumber(cfg.DeleteAtoms, rec.PreLocal)
	if err != nil {
		return fmt.Errorf("renumbering delete atoms: %w", err)
	}
	creates, err := mapping.Renumber(cfg.CreateAtoms, rec.PostLocal)
	if err != nil {
		return fmt.Errorf("renumbering create atoms: %w", err)
	}
	edges, err := mapping.Renumber(preEdges, rec.PreLocal)
	if err != nil {
		return fmt.Errorf("renumbering edge atoms: %w", err)
	}
	result.EdgeAtoms = edges

	result.PreMoleculePath = filepath.Join(cfg.Directory, cfg.PreSaveName)
	result.PostMoleculePath = filepath.Join(cfg.Directory, cfg.PostSaveName)
	result.MapPath = filepath.Join(cfg.Directory, cfg.MapFileName)

	if err := lammps.WriteMolecule(result.PreMoleculePath, preStruct, preSet, rec.PreLocal, preBonding, deletes); err != nil {
		return err
	}
	if err := lammps.WriteMolecule(result.PostMoleculePath, postStruct, postSet, rec.PostLocal, postBonding, nil); err != nil {
		return err
	}
	return lammps.WriteMap(result.MapPath, rec, preBonding, edges, deletes, creates)
}

// bondPath returns the reacting-bond path within one structure. A reaction
// that forms a bond has disconnected endpoints on the pre side (and one that
// breaks a bond may on the post side); the path then degenerates to the two
// endpoints themselves.
func bondPath(g *molecule.Graph, bond [2]int) (path []int, connected bool) {
	p, err := search.ShortestPath(g, bond[0], bond[1])
	if err != nil {
		return []int{bond[0], bond[1]}, false
	}
	return p, true
}

func toSet(ids []int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
