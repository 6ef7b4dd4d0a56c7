// Package main provides the vibe-ham command-line tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-ham/internal/ham"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vibe-ham",
		Short: "Hierarchical orthologous groups: build, compare, profile",
		Long: `vibe-ham builds a gene hierarchy from a species tree (Newick) and a set of
hierarchical orthologous groups (OrthoXML), then reports which ancestral genes
were retained, duplicated, lost or gained along the tree.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (default: ~/.vibe-ham.yaml)")
	pf.String("tree", "", "Species tree in Newick format")
	pf.String("orthoxml", "", "OrthoXML file with the HOGs ('-' for stdin, gzip accepted)")
	pf.Bool("internal-names", true, "Use internal node names of the species tree")
	pf.BoolP("verbose", "v", false, "Log debug messages")
	pf.BoolP("quiet", "q", false, "Only log warnings and errors")
	pf.StringSlice("filter-hog", nil, "Only load the families with these top-level HOG ids")
	pf.StringSlice("filter-gene", nil, "Only load the families containing these gene ids")
	pf.StringSlice("filter-xref", nil, "Only load the families containing these external gene ids")

	_ = viper.BindPFlag("tree", pf.Lookup("tree"))
	_ = viper.BindPFlag("orthoxml", pf.Lookup("orthoxml"))
	_ = viper.BindPFlag("use_internal_names", pf.Lookup("internal-names"))

	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newProfileCmd())
	cmd.AddCommand(newHOGCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig reads ~/.vibe-ham.yaml (or --config) and VIBE_HAM_* variables.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("VIBE_HAM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("use_internal_names", true)
	viper.SetDefault("log.level", "info")

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.SetConfigFile(filepath.Join(home, ".vibe-ham.yaml"))
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(viper.ConfigFileUsed()); os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// newLogger builds a development logger on stderr.
func newLogger(level zapcore.Level) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("Jan _2 15:04:05.000")
	encoderConfig.StacktraceKey = ""
	config.EncoderConfig = encoderConfig

	return config.Build()
}

// logLevel resolves --verbose, --quiet and the log.level setting.
func logLevel(cmd *cobra.Command) (zapcore.Level, error) {
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		return zapcore.DebugLevel, nil
	}
	if q, _ := cmd.Flags().GetBool("quiet"); q {
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func commandLogger(cmd *cobra.Command) (*zap.Logger, error) {
	level, err := logLevel(cmd)
	if err != nil {
		return nil, err
	}
	return newLogger(level)
}

// loadSession builds the hierarchy named by --tree and --orthoxml, applying
// the --filter-* flags.
func loadSession(cmd *cobra.Command, logger *zap.Logger) (*ham.Ham, error) {
	treePath := viper.GetString("tree")
	hogPath := viper.GetString("orthoxml")
	if treePath == "" || hogPath == "" {
		return nil, fmt.Errorf("both --tree and --orthoxml are required (or set tree/orthoxml with 'vibe-ham config set')")
	}

	filter := ham.NewFilter()
	hogs, _ := cmd.Flags().GetStringSlice("filter-hog")
	genes, _ := cmd.Flags().GetStringSlice("filter-gene")
	xrefs, _ := cmd.Flags().GetStringSlice("filter-xref")
	filter.AddHOGs(hogs...)
	filter.AddGenes(genes...)
	filter.AddXRefs(xrefs...)

	logger.Info("loading hierarchy",
		zap.String("tree", treePath),
		zap.String("orthoxml", hogPath),
		zap.Bool("filtered", !filter.Empty()))

	return ham.Load(treePath, hogPath, ham.Options{
		UseInternalNames: viper.GetBool("use_internal_names"),
		Query:            filter,
		Logger:           logger,
	})
}
