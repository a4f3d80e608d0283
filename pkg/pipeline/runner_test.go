package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yryd/automapper/pkg/config"
	"github.com/yryd/automapper/pkg/lammps"
	"github.com/yryd/automapper/pkg/mapping"
	"github.com/yryd/automapper/pkg/search"
)

// two CH3 fragments; the reaction bonds the carbons and deletes one hydrogen
// from each
const preFixture = `# pre-reaction fragments
8 atoms
6 bonds

Types

1 1
2 2
3 2
4 2
5 1
6 2
7 2
8 2

Bonds

1 1 1 2
2 1 1 3
3 1 1 4
4 1 5 6
5 1 5 7
6 1 5 8
`

const postFixture = `# post-reaction ethane-like product
6 atoms
5 bonds

Types

11 1
12 2
13 2
21 1
22 2
23 2

Bonds

1 1 11 21
2 1 11 12
3 1 11 13
4 1 21 22
5 1 21 23
`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
}

func baseConfig(dir string) *config.Config {
	return &config.Config{
		Directory:    dir,
		PreFile:      "pre.data",
		PostFile:     "post.data",
		PreSaveName:  "pre_mol.data",
		PostSaveName: "post_mol.data",
		MapFileName:  "automap.data",
		Elements:     []string{"C", "H", "O"},
		Radius:       4,
	}
}

func TestRunBondFormation(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", preFixture)
	writeFixture(t, dir, "post.data", postFixture)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 5, 11, 21}
	cfg.DeleteAtoms = []int{4, 8}

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RingOpening {
		t.Error("No ring is involved in this reaction")
	}
	if res.Passes != 0 {
		t.Errorf("Expected a stable boundary without expansion, got %d passes", res.Passes)
	}
	if res.PreRetained != 8 || res.PostRetained != 6 {
		t.Errorf("Unexpected retention counts %d/%d", res.PreRetained, res.PostRetained)
	}
	if len(res.Byproducts) != 0 {
		t.Errorf("Expected no byproducts, got %v", res.Byproducts)
	}

	var paired, deleted, created int
	for _, e := range res.Record.Entries {
		switch e.Kind {
		case mapping.KindPaired:
			paired++
		case mapping.KindDelete:
			deleted++
			if e.PostID != 0 || e.PostLocal != 0 {
				t.Errorf("Delete entry has a post side: %+v", e)
			}
		case mapping.KindCreate:
			created++
		}
	}
	if paired != 6 || deleted != 2 || created != 0 {
		t.Errorf("Expected 6 paired + 2 deleted entries, got %d/%d/%d", paired, deleted, created)
	}

	// the deleted hydrogens continue the pre-side numbering
	if res.Record.PreLocal[4] != 7 || res.Record.PreLocal[8] != 8 {
		t.Errorf("Unexpected delete renumbering %v", res.Record.PreLocal)
	}

	raw, err := os.ReadFile(res.MapPath)
	if err != nil {
		t.Fatalf("reading map file: %v", err)
	}
	content := string(raw)
	for _, want := range []string{"6 equivalences\n", "2 deleteIDs\n", "BondingIDs\n", "DeleteIDs\n", "Equivalences\n"} {
		if !strings.Contains(content, want) {
			t.Errorf("Map file missing %q:\n%s", want, content)
		}
	}
	for _, absent := range []string{"createIDs", "CreateIDs", "edgeIDs", "EdgeIDs"} {
		if strings.Contains(content, absent) {
			t.Errorf("Map file should omit %q:\n%s", absent, content)
		}
	}

	// both templates must re-read as valid, contiguously numbered structures
	preTpl, err := lammps.ReadStructure(res.PreMoleculePath)
	if err != nil {
		t.Fatalf("re-reading pre template: %v", err)
	}
	if len(preTpl.Atoms) != 8 || len(preTpl.Bonds) != 6 {
		t.Errorf("Unexpected pre template size: %d atoms, %d bonds", len(preTpl.Atoms), len(preTpl.Bonds))
	}
	seen := make(map[int]bool)
	for _, a := range preTpl.Atoms {
		seen[a.ID] = true
	}
	for id := 1; id <= 8; id++ {
		if !seen[id] {
			t.Errorf("Pre template missing local id %d", id)
		}
	}

	postTpl, err := lammps.ReadStructure(res.PostMoleculePath)
	if err != nil {
		t.Fatalf("re-reading post template: %v", err)
	}
	if len(postTpl.Atoms) != 6 || len(postTpl.Bonds) != 5 {
		t.Errorf("Unexpected post template size: %d atoms, %d bonds", len(postTpl.Atoms), len(postTpl.Bonds))
	}
}

func TestRunRingOpening(t *testing.T) {
	// eight-membered carbon ring: the reaction bonds ring atom 1 to the
	// external atom 9 while the 8-1 ring bond breaks. The far side of the
	// ring lies outside the retention radius, so only the ring-opening
	// widening keeps the templates complete on both sides.
	pre := `9 atoms
8 bonds

Types

1 1
2 1
3 1
4 1
5 1
6 1
7 1
8 1
9 1

Bonds

1 1 1 2
2 1 2 3
3 1 3 4
4 1 4 5
5 1 5 6
6 1 6 7
7 1 7 8
8 1 8 1
`
	post := `9 atoms
8 bonds

Types

1 1
2 1
3 1
4 1
5 1
6 1
7 1
8 1
9 1

Bonds

1 1 1 2
2 1 2 3
3 1 3 4
4 1 4 5
5 1 5 6
6 1 6 7
7 1 7 8
8 1 1 9
`
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", pre)
	writeFixture(t, dir, "post.data", post)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 9, 1, 9}
	cfg.Paired = true

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !res.RingOpening {
		t.Error("Expected the run to classify as a ring opening")
	}
	// every ring atom is retained on both sides, including atom 5 across
	// the ring from the reacting site
	if res.PreRetained != 9 || res.PostRetained != 9 {
		t.Errorf("Expected full retention on both sides, got %d/%d", res.PreRetained, res.PostRetained)
	}
	if len(res.Record.Entries) != 9 {
		t.Fatalf("Expected 9 paired entries, got %d", len(res.Record.Entries))
	}
	for _, e := range res.Record.Entries {
		if e.Kind != mapping.KindPaired {
			t.Errorf("Unexpected entry kind %v for atom %d", e.Kind, e.PreID)
		}
	}
}

func TestRunPairedByproduct(t *testing.T) {
	// condensation-like reaction with shared ids on both sides: the bond
	// forms between the carbons while a detached O-H fragment leaves
	pre := `4 atoms
2 bonds

Types

1 1
2 1
3 3
4 2

Bonds

1 1 1 3
2 1 3 4
`
	post := `4 atoms
2 bonds

Types

1 1
2 1
3 3
4 2

Bonds

1 1 1 2
2 1 3 4
`
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", pre)
	writeFixture(t, dir, "post.data", post)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 2, 1, 2}
	cfg.Paired = true

	res, err := NewRunner(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Byproducts) != 2 || res.Byproducts[0] != 3 || res.Byproducts[1] != 4 {
		t.Fatalf("Expected byproducts [3 4], got %v", res.Byproducts)
	}

	// the byproduct fragment is retained and its entries are tagged
	if res.PostRetained != 4 {
		t.Errorf("Byproducts must be folded into the post set, got %d retained", res.PostRetained)
	}
	tagged := 0
	for _, e := range res.Record.Entries {
		if e.Byproduct {
			tagged++
		}
	}
	if tagged != 2 {
		t.Errorf("Expected 2 byproduct-tagged entries, got %d", tagged)
	}
}

func TestRunPairedRejectsUnaccountedAtoms(t *testing.T) {
	pre := `2 atoms
1 bonds

Types

1 1
2 1

Bonds

1 1 1 2
`
	post := `1 atoms
0 bonds

Types

1 1
`
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", pre)
	writeFixture(t, dir, "post.data", post)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 2, 1, 1}
	cfg.Paired = true

	if _, err := NewRunner(cfg).Run(context.Background()); err == nil {
		t.Fatal("Expected an error for a pre atom with no post counterpart")
	}
}

func TestRunBondingAtomMissing(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", preFixture)
	writeFixture(t, dir, "post.data", postFixture)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 99, 11, 21}

	if _, err := NewRunner(cfg).Run(context.Background()); err == nil {
		t.Fatal("Expected an error for a bonding atom outside the structure")
	}
}

func TestRunDisconnectedOnBothSides(t *testing.T) {
	structure := `2 atoms
0 bonds

Types

1 1
2 1
`
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", structure)
	writeFixture(t, dir, "post.data", structure)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 2, 1, 2}
	cfg.Paired = true

	_, err := NewRunner(cfg).Run(context.Background())
	var noPath *search.NoPathError
	if !errors.As(err, &noPath) {
		t.Fatalf("Expected NoPathError, got %v", err)
	}
}

func TestRunNoFilesWrittenOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "pre.data", preFixture)
	writeFixture(t, dir, "post.data", postFixture)

	cfg := baseConfig(dir)
	cfg.BondingAtoms = []int{1, 99, 11, 21}

	if _, err := NewRunner(cfg).Run(context.Background()); err == nil {
		t.Fatal("Expected a failing run")
	}
	for _, name := range []string{"pre_mol.data", "post_mol.data", "automap.data"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("Output %s must not exist after a failed run", name)
		}
	}
}
