package lammps

import (
	"fmt"
	"os"
	"strings"

	"github.com/yryd/automapper/pkg/mapping"
)

// WriteMolecule writes a molecule-template file holding only the kept atoms,
// renumbered through renum. A nil keep set keeps every atom; a nil renum
// writes external ids unchanged. Bonds, angles, dihedrals and impropers that
// reference a dropped atom are dropped with it. Bonding and delete atom ids
// (already renumbered by the caller) are recorded as header comments, the
// way downstream tooling expects to find them.
func WriteMolecule(path string, s *Structure, keep map[int]bool, renum map[int]int, bondingAtoms, deleteAtoms []int) error {
	kept := func(id int) bool { return keep == nil || keep[id] }
	local := func(id int) int {
		if renum == nil {
			return id
		}
		return renum[id]
	}

	var atoms []struct {
		id  int
		row int // index into s.Atoms
	}
	for i, a := range s.Atoms {
		if kept(a.ID) {
			atoms = append(atoms, struct{ id, row int }{local(a.ID), i})
		}
	}

	keptBonds := filterBonds(s.Bonds, kept)
	keptAngles := filterTopo(s.Angles, kept)
	keptDihedrals := filterTopo(s.Dihedrals, kept)
	keptImpropers := filterTopo(s.Impropers, kept)

	var b strings.Builder
	b.WriteString("# Molecule template generated by automapper\n")
	if len(bondingAtoms) > 0 {
		b.WriteString(fmt.Sprintf("# Bonding_Atoms %s\n", joinInts(bondingAtoms, " ")))
	}
	if len(deleteAtoms) > 0 {
		b.WriteString(fmt.Sprintf("# Delete_Atoms %s\n", joinInts(deleteAtoms, " ")))
	}
	b.WriteString(fmt.Sprintf("%d atoms\n", len(atoms)))
	b.WriteString(fmt.Sprintf("%d bonds\n", len(keptBonds)))
	b.WriteString(fmt.Sprintf("%d angles\n", len(keptAngles)))
	b.WriteString(fmt.Sprintf("%d dihedrals\n", len(keptDihedrals)))
	b.WriteString(fmt.Sprintf("%d impropers\n", len(keptImpropers)))

	b.WriteString("\nTypes\n\n")
	for _, a := range atoms {
		b.WriteString(fmt.Sprintf("%d %d\n", a.id, s.Atoms[a.row].Type))
	}

	b.WriteString("\nCharges\n\n")
	for _, a := range atoms {
		b.WriteString(fmt.Sprintf("%d %g\n", a.id, s.Atoms[a.row].Charge))
	}

	b.WriteString("\nCoords\n\n")
	for _, a := range atoms {
		pos := s.Atoms[a.row].Pos
		b.WriteString(fmt.Sprintf("%d %g %g %g\n", a.id, pos[0], pos[1], pos[2]))
	}

	if len(keptBonds) > 0 {
		b.WriteString("\nBonds\n\n")
		for i, bond := range keptBonds {
			b.WriteString(fmt.Sprintf("%d %d %d %d\n", i+1, bond.Type, local(bond.A), local(bond.B)))
		}
	}

	writeTopoSection(&b, "Angles", keptAngles, local)
	writeTopoSection(&b, "Dihedrals", keptDihedrals, local)
	writeTopoSection(&b, "Impropers", keptImpropers, local)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing molecule file: %w", err)
	}
	return nil
}

// WriteMap writes the line-oriented correspondence file for the reaction
// feature: count headers, the bonding/delete/edge/create id sections, then
// one equivalence line per persistent atom pair. All ids are template-local.
func WriteMap(path string, rec *mapping.Record, bonding, edge, deletes, creates []int) error {
	var paired []mapping.Entry
	for _, e := range rec.Entries {
		if e.Kind == mapping.KindPaired {
			paired = append(paired, e)
		}
	}

	var b strings.Builder
	b.WriteString("# Reaction map generated by automapper\n")
	b.WriteString(fmt.Sprintf("%d equivalences\n", len(paired)))
	if len(deletes) > 0 {
		b.WriteString(fmt.Sprintf("%d deleteIDs\n", len(deletes)))
	}
	if len(edge) > 0 {
		b.WriteString(fmt.Sprintf("%d edgeIDs\n", len(edge)))
	}
	if len(creates) > 0 {
		b.WriteString(fmt.Sprintf("%d createIDs\n", len(creates)))
	}

	writeIDSection(&b, "BondingIDs", bonding)
	writeIDSection(&b, "DeleteIDs", deletes)
	writeIDSection(&b, "EdgeIDs", edge)
	writeIDSection(&b, "CreateIDs", creates)

	b.WriteString("\nEquivalences\n\n")
	for _, e := range paired {
		b.WriteString(fmt.Sprintf("%d\t%d\n", e.PreLocal, e.PostLocal))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing map file: %w", err)
	}
	return nil
}

func writeIDSection(b *strings.Builder, name string, ids []int) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("\n" + name + "\n\n")
	for _, id := range ids {
		b.WriteString(fmt.Sprintf("%d\n", id))
	}
}

func writeTopoSection(b *strings.Builder, name string, topos []TopoRec, local func(int) int) {
	if len(topos) == 0 {
		return
	}
	b.WriteString("\n" + name + "\n\n")
	for i, t := range topos {
		b.WriteString(fmt.Sprintf("%d %d", i+1, t.Type))
		for _, atom := range t.Atoms {
			b.WriteString(fmt.Sprintf(" %d", local(atom)))
		}
		b.WriteString("\n")
	}
}

func filterBonds(bonds []BondRec, kept func(int) bool) []BondRec {
	var out []BondRec
	for _, b := range bonds {
		if kept(b.A) && kept(b.B) {
			out = append(out, b)
		}
	}
	return out
}

func filterTopo(topos []TopoRec, kept func(int) bool) []TopoRec {
	var out []TopoRec
	for _, t := range topos {
		all := true
		for _, atom := range t.Atoms {
			if !kept(atom) {
				all = false
				break
			}
		}
		if all {
			out = append(out, t)
		}
	}
	return out
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, sep)
}
