// Package lammps reads and writes the simulation engine's structure formats:
// full data files, the smaller molecule-template format, and the map file
// consumed by the engine's reaction feature. The mapping core never touches
// file syntax; it works on the Structure produced here.
package lammps

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/yryd/automapper/pkg/molecule"
)

// BondRec is one bond row: engine bond type plus the two atom ids
type BondRec struct {
	Type int
	A, B int
}

// TopoRec is one angle/dihedral/improper row: engine type plus member atoms
type TopoRec struct {
	Type  int
	Atoms []int
}

// Structure is the parsed content of one structure file
type Structure struct {
	Atoms     []molecule.AtomData
	Bonds     []BondRec
	Angles    []TopoRec
	Dihedrals []TopoRec
	Impropers []TopoRec
}

// BondPairs returns the bonds as bare atom-id pairs for graph building
func (s *Structure) BondPairs() [][2]int {
	pairs := make([][2]int, len(s.Bonds))
	for i, b := range s.Bonds {
		pairs[i] = [2]int{b.A, b.B}
	}
	return pairs
}

// ReadStructure parses a LAMMPS molecule file (Types/Charges/Coords/Bonds
// sections) or a full data file (Atoms section, atom_style full). Comments
// and blank lines are tolerated anywhere.
func ReadStructure(path string) (*Structure, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening structure file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		// strip trailing comments, keep the first line's title comment out too
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading structure file: %w", err)
	}

	sections := splitSections(lines)

	s := &Structure{}
	if rows, ok := sections["Atoms"]; ok {
		// data file: id mol type q x y z
		if err := s.parseDataAtoms(rows); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else if _, ok := sections["Types"]; ok {
		// molecule file: Types, Charges, Coords
		if err := s.parseMoleculeAtoms(sections); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		return nil, fmt.Errorf("%s: neither an Atoms nor a Types section found", path)
	}

	var perr error
	s.Bonds = parseBonds(sections["Bonds"], &perr)
	s.Angles = parseTopo(sections["Angles"], 3, &perr)
	s.Dihedrals = parseTopo(sections["Dihedrals"], 4, &perr)
	s.Impropers = parseTopo(sections["Impropers"], 4, &perr)
	if perr != nil {
		return nil, fmt.Errorf("%s: %w", path, perr)
	}

	return s, nil
}

// splitSections groups body rows under their section keyword. Header lines
// (counts, box bounds) precede the first keyword and are dropped; counts are
// recomputed on write.
func splitSections(lines []string) map[string][][]string {
	sections := make(map[string][][]string)
	current := ""
	for _, line := range lines {
		if isSectionKeyword(line) {
			current = line
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], strings.Fields(line))
		}
	}
	return sections
}

// isSectionKeyword reports whether a line is a bare section name such as
// "Types" or "Bond Coeffs": every field alphabetic
func isSectionKeyword(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		for _, r := range f {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return false
			}
		}
	}
	return true
}

func (s *Structure) parseDataAtoms(rows [][]string) error {
	for _, row := range rows {
		if len(row) < 7 {
			return fmt.Errorf("Atoms row has %d fields, expected at least 7 (atom_style full)", len(row))
		}
		id, err1 := strconv.Atoi(row[0])
		typ, err2 := strconv.Atoi(row[2])
		q, err3 := strconv.ParseFloat(row[3], 64)
		x, err4 := strconv.ParseFloat(row[4], 64)
		y, err5 := strconv.ParseFloat(row[5], 64)
		z, err6 := strconv.ParseFloat(row[6], 64)
		if err := firstErr(err1, err2, err3, err4, err5, err6); err != nil {
			return fmt.Errorf("Atoms row %v: %w", row, err)
		}
		s.Atoms = append(s.Atoms, molecule.AtomData{ID: id, Type: typ, Charge: q, Pos: [3]float64{x, y, z}})
	}
	return nil
}

func (s *Structure) parseMoleculeAtoms(sections map[string][][]string) error {
	charges := make(map[int]float64)
	for _, row := range sections["Charges"] {
		if len(row) != 2 {
			return fmt.Errorf("Charges row has %d fields, expected 2", len(row))
		}
		id, err1 := strconv.Atoi(row[0])
		q, err2 := strconv.ParseFloat(row[1], 64)
		if err := firstErr(err1, err2); err != nil {
			return fmt.Errorf("Charges row %v: %w", row, err)
		}
		charges[id] = q
	}

	coords := make(map[int][3]float64)
	for _, row := range sections["Coords"] {
		if len(row) != 4 {
			return fmt.Errorf("Coords row has %d fields, expected 4", len(row))
		}
		id, err1 := strconv.Atoi(row[0])
		x, err2 := strconv.ParseFloat(row[1], 64)
		y, err3 := strconv.ParseFloat(row[2], 64)
		z, err4 := strconv.ParseFloat(row[3], 64)
		if err := firstErr(err1, err2, err3, err4); err != nil {
			return fmt.Errorf("Coords row %v: %w", row, err)
		}
		coords[id] = [3]float64{x, y, z}
	}

	for _, row := range sections["Types"] {
		if len(row) != 2 {
			return fmt.Errorf("Types row has %d fields, expected 2", len(row))
		}
		id, err1 := strconv.Atoi(row[0])
		typ, err2 := strconv.Atoi(row[1])
		if err := firstErr(err1, err2); err != nil {
			return fmt.Errorf("Types row %v: %w", row, err)
		}
		s.Atoms = append(s.Atoms, molecule.AtomData{ID: id, Type: typ, Charge: charges[id], Pos: coords[id]})
	}
	return nil
}

func parseBonds(rows [][]string, perr *error) []BondRec {
	var bonds []BondRec
	for _, row := range rows {
		if *perr != nil {
			return bonds
		}
		if len(row) != 4 {
			*perr = fmt.Errorf("Bonds row has %d fields, expected 4", len(row))
			return bonds
		}
		vals, err := atoiAll(row[1:])
		if err != nil {
			*perr = fmt.Errorf("Bonds row %v: %w", row, err)
			return bonds
		}
		bonds = append(bonds, BondRec{Type: vals[0], A: vals[1], B: vals[2]})
	}
	return bonds
}

func parseTopo(rows [][]string, members int, perr *error) []TopoRec {
	var topos []TopoRec
	for _, row := range rows {
		if *perr != nil {
			return topos
		}
		if len(row) != members+2 {
			*perr = fmt.Errorf("topology row has %d fields, expected %d", len(row), members+2)
			return topos
		}
		vals, err := atoiAll(row[1:])
		if err != nil {
			*perr = fmt.Errorf("topology row %v: %w", row, err)
			return topos
		}
		topos = append(topos, TopoRec{Type: vals[0], Atoms: vals[1:]})
	}
	return topos
}

func atoiAll(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
