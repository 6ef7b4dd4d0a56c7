package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/ham"
	"github.com/inodb/vibe-ham/internal/hog"
	"github.com/inodb/vibe-ham/internal/output"
)

// openOutput returns the command's stdout, or a created file when path is set.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}

// withSession loads the hierarchy and runs fn with it.
func withSession(cmd *cobra.Command, fn func(h *ham.Ham, logger *zap.Logger) error) error {
	logger, err := commandLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	h, err := loadSession(cmd, logger)
	if err != nil {
		return err
	}
	return fn(h, logger)
}

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Load the hierarchy and print its size per genome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ascii, _ := cmd.Flags().GetBool("ascii")
			return withSession(cmd, func(h *ham.Ham, _ *zap.Logger) error {
				return writeSummary(cmd.OutOrStdout(), h, ascii)
			})
		},
	}
	cmd.Flags().Bool("ascii", false, "Also draw the species tree")
	return cmd
}

func writeSummary(w io.Writer, h *ham.Ham, ascii bool) error {
	singletons := 0
	for _, g := range h.ExtantGenes() {
		if g.IsSingleton() {
			singletons++
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "families\t%d\n", len(h.TopLevelHOGs()))
	fmt.Fprintf(tw, "genes\t%d\n", len(h.ExtantGenes()))
	fmt.Fprintf(tw, "singletons\t%d\n", singletons)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "genome\ttype\tmembers")
	for _, g := range h.ExtantGenomes() {
		fmt.Fprintf(tw, "%s\textant\t%d\n", g.Name(), len(g.Genes()))
	}
	for _, g := range h.AncestralGenomes() {
		fmt.Fprintf(tw, "%s\tancestral\t%d\n", g.Name(), len(g.HOGs()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ascii {
		_, err := fmt.Fprint(w, "\n"+h.ASCIITaxonomy())
		return err
	}
	return nil
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Count genes and evolutionary events per taxonomy level",
		Example: `  vibe-ham profile --tree species.nwk --orthoxml hogs.xml
  vibe-ham profile --hog 3 --tree species.nwk --orthoxml hogs.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hogID, _ := cmd.Flags().GetString("hog")
			outPath, _ := cmd.Flags().GetString("output")
			return withSession(cmd, func(h *ham.Ham, _ *zap.Logger) error {
				var root *hog.HOG
				if hogID != "" {
					var err error
					if root, err = h.HOGByID(hogID); err != nil {
						return err
					}
				}
				p, err := h.TreeProfile(root)
				if err != nil {
					return err
				}

				w, closeOut, err := openOutput(cmd, outPath)
				if err != nil {
					return err
				}
				defer closeOut() //nolint:errcheck

				pw := output.NewProfileWriter(w)
				if err := pw.WriteHeader(); err != nil {
					return err
				}
				if err := pw.Write(p); err != nil {
					return err
				}
				return pw.Flush()
			})
		},
	}
	cmd.Flags().String("hog", "", "Profile a single top-level HOG instead of the whole hierarchy")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newHOGCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hog <id>",
		Short: "Print a HOG, or the family of a gene, as an indented tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(h *ham.Ham, _ *zap.Logger) error {
				x, err := resolveHOG(h, args[0])
				if err != nil {
					return err
				}
				hw := output.NewHOGWriter(cmd.OutOrStdout())
				if err := hw.Write(x); err != nil {
					return err
				}
				return hw.Flush()
			})
		},
	}
}

// resolveHOG looks id up as a HOG id, then as a gene id or external gene id
// whose family is returned.
func resolveHOG(h *ham.Ham, id string) (*hog.HOG, error) {
	if x, err := h.HOGByID(id); err == nil {
		return x, nil
	}
	genes := []*hog.Gene{}
	if g, err := h.GeneByID(id); err == nil {
		genes = append(genes, g)
	} else if xs, err := h.GenesByExternalID(id); err == nil {
		genes = xs
	}
	for _, g := range genes {
		if x, ok := h.HOGByGene(g).(*hog.HOG); ok {
			return x, nil
		}
	}
	if len(genes) > 0 {
		return nil, fmt.Errorf("gene %s is a singleton", id)
	}
	return nil, fmt.Errorf("hog or gene %s: %w", id, hog.ErrNotFound)
}
