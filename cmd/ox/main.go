// Package main implements the OX CLI: a thin front-end over pkg/project
// that does no parsing or preprocessing of its own. It only resolves a
// project configuration and calls project.Project.Run.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/the-ox-studio/oxdef-sub002/pkg/config"
	"github.com/the-ox-studio/oxdef-sub002/pkg/fileloader"
	"github.com/the-ox-studio/oxdef-sub002/pkg/oxlog"
	"github.com/the-ox-studio/oxdef-sub002/pkg/project"
	"github.com/the-ox-studio/oxdef-sub002/pkg/ui"
)

var version = "0.1.0-alpha"

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:          "ox",
		Short:        "OX - an authoring-time toolchain for a block-structured data-interchange language",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.ox>",
		Short: "Preprocess an OX entry file and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(args[0], false)
			return err
		},
	}
}

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file.ox>",
		Short: "Preprocess an OX entry file and print the resolved document tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := run(args[0], true)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the OX version",
		Run: func(cmd *cobra.Command, args []string) {
			r := ui.NewReporter()
			r.PrintHeader(version)
		},
	}
}

// run resolves cfg for entryPath, drives project.Project.Run once, and
// reports the outcome through pkg/ui. When dump is true and the run
// succeeds, the resolved document tree is printed as well.
func run(entryPath string, dump bool) (bool, error) {
	reporter := ui.NewReporter()
	reporter.PrintHeader(version)
	reporter.PrintFileStart(entryPath)

	cfg, err := resolveConfig(entryPath)
	if err != nil {
		reporter.PrintSummary(false, err.Error())
		return false, err
	}

	p := project.New(cfg, fileloader.AfsAdapter{Service: afs.New()})

	logger, logErr := oxlog.NewZapLogger(logLevel)
	if logErr != nil {
		logger = oxlog.Nop()
	}
	defer logger.Sync()
	p.SetLogger(logger)

	start := time.Now()
	doc, diags, stats, runErr := p.Run(context.Background())
	elapsed := time.Since(start)

	status := ui.StageOK
	switch {
	case runErr != nil:
		status = ui.StageError
	case diags.HasErrors() || len(diags.Warnings()) > 0:
		status = ui.StageWarning
	}
	reporter.PrintStage("Process", status, elapsed)
	reporter.PrintDiagnostics(diags)
	fmt.Printf("  %d file(s), %d cache hit(s), %d miss(es), %d eviction(s), %d diagnostic(s)\n",
		stats.FileCount, stats.CacheHits, stats.CacheMisses, stats.EvictionCount, stats.TotalDiagnostics)

	if runErr != nil {
		reporter.PrintSummary(false, runErr.Error())
		return false, runErr
	}
	reporter.PrintSummary(true, "")

	if dump && doc != nil {
		fmt.Println()
		fmt.Print(ui.DumpDocument(doc))
	}
	return true, nil
}

// resolveConfig builds the project configuration for entryPath: an
// "ox.toml" sitting next to it, if present, otherwise spec.md §5/§6
// defaults. BaseDir/EntryFile always come from entryPath itself, since
// the CLI's argument is the authority on what to build, not the config
// file.
func resolveConfig(entryPath string) (*config.Config, error) {
	dir := filepath.Dir(entryPath)
	var cfg *config.Config

	tomlPath := filepath.Join(dir, "ox.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		// Decoded over the defaults rather than through config.Load, whose
		// validation would reject a file that omits base_dir/entry_file.
		cfg = config.Default()
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("loading %s: %w", tomlPath, err)
		}
		if len(cfg.Behavior.ModuleDirectories) == 0 {
			cfg.Behavior.ModuleDirectories = []string{"node_modules"}
		}
	} else {
		cfg = config.Default()
	}

	cfg.BaseDir = dir
	cfg.EntryFile = filepath.Base(entryPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
