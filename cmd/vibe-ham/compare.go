package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/ham"
	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/mapper"
	"github.com/inodb/vibe-ham/internal/output"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Classify genes as retained, duplicated, lost or gained between genomes",
		Long: `Compare a descendant genome with one of its ancestors (--ancestor/--descendant),
or several genomes with their most recent common ancestor (--lateral).

Each output row is one event: RETAINED and DUPLICATE rows list the descendant
copies of an ancestral gene, LOSS rows an ancestral gene without copy, GAIN
rows a descendant gene without ancestor.`,
		Example: `  vibe-ham compare --ancestor Vertebrata --descendant MOUSE
  vibe-ham compare --lateral HUMAN,MOUSE,RATNO -o events.tsv`,
		Args: cobra.NoArgs,
		RunE: runCompare,
	}
	cmd.Flags().String("ancestor", "", "Ancestral genome (taxonomy level name)")
	cmd.Flags().String("descendant", "", "Descendant genome (species or taxonomy level name)")
	cmd.Flags().StringSlice("lateral", nil, "Genomes to compare against their common ancestor")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	anc, _ := cmd.Flags().GetString("ancestor")
	desc, _ := cmd.Flags().GetString("descendant")
	lateral, _ := cmd.Flags().GetStringSlice("lateral")
	outPath, _ := cmd.Flags().GetString("output")

	if len(lateral) == 0 && (anc == "" || desc == "") {
		return fmt.Errorf("either --ancestor and --descendant, or --lateral is required")
	}
	if len(lateral) > 0 && (anc != "" || desc != "") {
		return fmt.Errorf("--lateral cannot be combined with --ancestor/--descendant")
	}

	return withSession(cmd, func(h *ham.Ham, logger *zap.Logger) error {
		maps, err := compareMaps(h, anc, desc, lateral)
		if err != nil {
			return err
		}

		w, closeOut, err := openOutput(cmd, outPath)
		if err != nil {
			return err
		}
		defer closeOut() //nolint:errcheck

		ew := output.NewEventWriter(w)
		if err := ew.WriteHeader(); err != nil {
			return err
		}
		for _, m := range maps {
			if err := ew.Write(m); err != nil {
				return err
			}
			logComparison(logger, m)
		}
		return ew.Flush()
	})
}

// compareMaps resolves the genome names and returns one HOGsMap per compared
// descendant genome.
func compareMaps(h *ham.Ham, anc, desc string, lateral []string) ([]*mapper.HOGsMap, error) {
	if len(lateral) > 0 {
		genomes := make([]hog.Genome, len(lateral))
		for i, name := range lateral {
			g, err := h.GenomeByName(name)
			if err != nil {
				return nil, err
			}
			genomes[i] = g
		}
		l, err := h.CompareLateral(genomes...)
		if err != nil {
			return nil, err
		}
		maps := make([]*mapper.HOGsMap, 0, len(l.Descendants()))
		for _, g := range l.Descendants() {
			maps = append(maps, l.Map(g))
		}
		return maps, nil
	}

	g1, err := h.GenomeByName(anc)
	if err != nil {
		return nil, err
	}
	g2, err := h.GenomeByName(desc)
	if err != nil {
		return nil, err
	}
	v, err := h.CompareVertical(g1, g2)
	if err != nil {
		return nil, err
	}
	return []*mapper.HOGsMap{v.Map()}, nil
}

func logComparison(logger *zap.Logger, m *mapper.HOGsMap) {
	logger.Info("genomes compared",
		zap.String("ancestor", m.Ancestor.Name()),
		zap.String("descendant", m.Descendant.Name()),
		zap.Int("retained", len(m.Retained)),
		zap.Int("duplicated", len(m.Duplicate)),
		zap.Int("lost", len(m.Loss)),
		zap.Int("gained", len(m.Gain)),
		zap.Bool("consistent", m.Consistent))
}
