package output

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/yryd/automapper/pkg/mapping"
	"github.com/yryd/automapper/pkg/pipeline"
)

// PrintRunReport prints a formatted summary of a completed mapping run
func PrintRunReport(res *pipeline.Result) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("AutoMapper - Reaction Map Report")
	bold.Println("================================")

	fmt.Printf("Pre structure:  %d atoms, %d retained in template\n", res.PreTotal, res.PreRetained)
	fmt.Printf("Post structure: %d atoms, %d retained in template\n", res.PostTotal, res.PostRetained)

	if res.RingOpening {
		yellow.Println("Reaction type: ring opening (full ring retained)")
	}

	var paired, deletes, creates int
	for _, e := range res.Record.Entries {
		switch e.Kind {
		case mapping.KindPaired:
			paired++
		case mapping.KindDelete:
			deletes++
		case mapping.KindCreate:
			creates++
		}
	}

	fmt.Printf("Equivalences: %d pairs\n", paired)
	if deletes > 0 {
		yellow.Printf("Deleted atoms: %d\n", deletes)
	}
	if creates > 0 {
		yellow.Printf("Created atoms: %d\n", creates)
	}
	if len(res.Byproducts) > 0 {
		yellow.Printf("Byproduct atoms: %d %v\n", len(res.Byproducts), res.Byproducts)
	}
	if len(res.EdgeAtoms) > 0 {
		cyan.Printf("Edge atoms (template ids): %v\n", res.EdgeAtoms)
	}

	if res.Passes == 0 {
		green.Println("Boundary stable after initial retention (zero expansions)")
	} else {
		fmt.Printf("Boundary stabilized after %d expansion pass(es)\n", res.Passes)
	}

	fmt.Println()
	fmt.Printf("Wrote: %s\n", res.PreMoleculePath)
	fmt.Printf("Wrote: %s\n", res.PostMoleculePath)
	green.Printf("Wrote: %s\n", res.MapPath)
}
