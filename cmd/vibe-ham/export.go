package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ham/internal/duckdb"
	"github.com/inodb/vibe-ham/internal/ham"
	"github.com/inodb/vibe-ham/internal/mapper"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the hierarchy and comparisons to a DuckDB database",
		Long: `Export every HOG and gene of the hierarchy into the hogs and genes tables of a
DuckDB database, stamped with a new run id. Comparisons given with --compare are
stored in comparison_events.

An export of unchanged input files is skipped unless --force is given or the
stored run lacks one of the requested comparisons.`,
		Example: `  vibe-ham export --duckdb ham.duckdb
  vibe-ham export --duckdb ham.duckdb --compare Vertebrata:MOUSE --compare Rodents:RATNO`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}
	cmd.Flags().String("duckdb", "", "DuckDB database path (default: duckdb.path setting)")
	cmd.Flags().StringSlice("compare", nil, "Comparisons to store, as ancestor:descendant")
	cmd.Flags().Bool("force", false, "Export even if the same input files were exported before")
	_ = viper.BindPFlag("duckdb.path", cmd.Flags().Lookup("duckdb"))
	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	dbPath := viper.GetString("duckdb.path")
	if dbPath == "" {
		return fmt.Errorf("--duckdb is required (or set duckdb.path with 'vibe-ham config set')")
	}
	pairs, _ := cmd.Flags().GetStringSlice("compare")
	force, _ := cmd.Flags().GetBool("force")

	comparisons := make([][2]string, len(pairs))
	for i, p := range pairs {
		anc, desc, ok := strings.Cut(p, ":")
		if !ok || anc == "" || desc == "" {
			return fmt.Errorf("invalid comparison %q: expected ancestor:descendant", p)
		}
		comparisons[i] = [2]string{anc, desc}
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Stdin inputs have no fingerprint and are always exported.
	treeFP, treeErr := duckdb.StatFile(viper.GetString("tree"))
	hogFP, hogErr := duckdb.StatFile(viper.GetString("orthoxml"))
	fingerprinted := treeErr == nil && hogErr == nil

	logger, err := commandLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if fingerprinted && !force {
		id, ok, err := store.FindRun(treeFP, hogFP)
		if err != nil {
			return err
		}
		if ok {
			missing, err := missingComparisons(store, id, comparisons)
			if err != nil {
				return err
			}
			if len(missing) == 0 {
				logger.Info("inputs already exported, use --force to export again", zap.String("run", id))
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}
			logger.Info("exported run lacks requested comparisons, exporting again",
				zap.String("run", id),
				zap.Strings("missing", missing))
		}
	}

	h, err := loadSession(cmd, logger)
	if err != nil {
		return err
	}

	runID := duckdb.NewRunID()
	if err := exportSession(store, runID, h, comparisons, logger); err != nil {
		if delErr := store.DeleteRun(runID); delErr != nil {
			logger.Error("removing partial export", zap.String("run", runID), zap.Error(delErr))
		}
		return err
	}
	// The run row goes in last so that FindRun never returns a partial export.
	if fingerprinted {
		if err := store.WriteRun(runID, treeFP, hogFP); err != nil {
			if delErr := store.DeleteRun(runID); delErr != nil {
				logger.Error("removing partial export", zap.String("run", runID), zap.Error(delErr))
			}
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}

// missingComparisons returns the requested comparisons run id does not hold,
// as ancestor:descendant.
func missingComparisons(store *duckdb.Store, runID string, comparisons [][2]string) ([]string, error) {
	var missing []string
	for _, c := range comparisons {
		ok, err := store.HasComparison(runID, c[0], c[1])
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, c[0]+":"+c[1])
		}
	}
	return missing, nil
}

// exportSession stores the hierarchy and the comparisons under runID. Every
// comparison is computed before anything is written.
func exportSession(store *duckdb.Store, runID string, h *ham.Ham, comparisons [][2]string, logger *zap.Logger) error {
	maps := make([]*mapper.HOGsMap, len(comparisons))
	for i, c := range comparisons {
		m, err := compareMaps(h, c[0], c[1], nil)
		if err != nil {
			return fmt.Errorf("comparison %s:%s: %w", c[0], c[1], err)
		}
		maps[i] = m[0]
	}

	if err := store.WriteHierarchy(runID, h); err != nil {
		return fmt.Errorf("export hierarchy: %w", err)
	}
	for i, m := range maps {
		if err := store.WriteEvents(runID, h, m); err != nil {
			return fmt.Errorf("export comparison %s:%s: %w", comparisons[i][0], comparisons[i][1], err)
		}
		logComparison(logger, m)
	}

	logger.Info("hierarchy exported",
		zap.String("run", runID),
		zap.Int("families", len(h.TopLevelHOGs())),
		zap.Int("comparisons", len(comparisons)))
	return nil
}
