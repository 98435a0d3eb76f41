// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/publishing-profiler/internal/dataset"
	"github.com/pdiddy/publishing-profiler/internal/funder"
	"github.com/pdiddy/publishing-profiler/internal/pipeline"
	"github.com/pdiddy/publishing-profiler/internal/runstore"
	"github.com/pdiddy/publishing-profiler/internal/snapshot"
	"github.com/pdiddy/publishing-profiler/pkg/types"
)

// showAllJournals is the journal limit of the "show all" view.
const showAllJournals = 2000

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Profile one or all institutions",
	Long: `Run loads an institution's merged export from data/<Institution>/, classifies
every record, and analyzes the articles that are corresponding-authored at the
institution and federally funded: publisher, journal, and parent-agency tables
per year plus the number of publishers needed to reach each target share.

Snapshots of the intermediate tables are written next to the input, and the
tables replace the contents of the run store.`,
	RunE: runProfile,
}

// runOptions holds the per-invocation settings of the run command.
type runOptions struct {
	input     string
	agency    string
	targets   []float64
	snapshots bool
}

func runProfile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("institution")
	all, _ := cmd.Flags().GetBool("all")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	top := topFromFlags(cmd, cfg)

	opts := runOptions{snapshots: cfg.Output.Snapshots}
	opts.input, _ = cmd.Flags().GetString("input")
	opts.agency, _ = cmd.Flags().GetString("agency")
	opts.targets, _ = cmd.Flags().GetFloat64Slice("target")
	if len(opts.targets) == 0 {
		opts.targets = cfg.Analysis.Targets
	}
	if noSnapshot, _ := cmd.Flags().GetBool("no-snapshot"); noSnapshot {
		opts.snapshots = false
	}

	var insts []types.Institution
	switch {
	case all && name != "":
		return fmt.Errorf("--institution and --all are mutually exclusive")
	case all:
		if opts.input != "" {
			return fmt.Errorf("--input requires a single --institution")
		}
		insts = cfg.Institutions
	case name != "":
		inst, ok := cfg.FindInstitution(name)
		if !ok {
			return fmt.Errorf("unknown institution %q: see the institutions command", name)
		}
		insts = []types.Institution{inst}
	default:
		return fmt.Errorf("--institution or --all required")
	}

	lookup, err := funder.LoadCSVFile(cfg.Lookup.File, cfg.Lookup.KeyColumn, cfg.Lookup.ValueColumn)
	if err != nil {
		return err
	}
	logger.Info("loaded funder lookup", zap.String("file", cfg.Lookup.File), zap.Int("names", lookup.Len()))

	reports, err := profileAll(cmd.Context(), cfg, insts, lookup, opts)
	if err != nil {
		return err
	}

	store, err := runstore.NewStore(cfg.Output.StoreDir)
	if err != nil {
		return err
	}
	defer store.Close()

	reports, err = store.Replace(contextOrBackground(cmd.Context()), reports)
	if err != nil {
		return fmt.Errorf("storing run: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	}
	for i, rep := range reports {
		if i > 0 {
			fmt.Println()
		}
		runstore.FormatTable(rep, os.Stdout, top)
	}
	return nil
}

// profileAll runs every institution concurrently. Reports keep the order of
// insts; the first failure cancels the rest.
func profileAll(ctx context.Context, cfg types.ProfilerConfig, insts []types.Institution, lookup *funder.Table, opts runOptions) ([]runstore.Report, error) {
	reports := make([]runstore.Report, len(insts))
	g, ctx := errgroup.WithContext(contextOrBackground(ctx))
	g.SetLimit(runtime.NumCPU())
	for i, inst := range insts {
		i, inst := i, inst
		g.Go(func() error {
			rep, err := profileInstitution(ctx, cfg, inst, lookup, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", inst.Name, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// profileInstitution loads, analyzes, and snapshots one institution.
func profileInstitution(ctx context.Context, cfg types.ProfilerConfig, inst types.Institution, lookup *funder.Table, opts runOptions) (runstore.Report, error) {
	log := logger.With(zap.String("institution", inst.Name))

	path := opts.input
	if path == "" {
		var err error
		if path, err = dataset.Discover(cfg.DataDir, inst); err != nil {
			return runstore.Report{}, err
		}
	}

	ds, err := dataset.LoadFile(ctx, path)
	if err != nil {
		return runstore.Report{}, err
	}
	log.Info("loaded input", zap.String("path", path), zap.Int("records", len(ds.Records)))

	res, err := pipeline.Run(ds.Records, lookup, pipeline.Options{
		Targets:         opts.targets,
		DrillDownAgency: opts.agency,
		Logger:          log,
	})
	if err != nil {
		return runstore.Report{}, err
	}

	if opts.snapshots {
		paths, err := snapshot.Write(res, snapshot.Options{
			Dir:     filepath.Join(cfg.DataDir, inst.NoSpaces()),
			Prefix:  inst.NoSpaces(),
			Columns: ds.Columns,
		})
		if err != nil {
			return runstore.Report{}, err
		}
		log.Info("wrote snapshots", zap.Int("files", len(paths)))
	}

	return runstore.NewReport(inst.Name, path, res), nil
}

func topFromFlags(cmd *cobra.Command, cfg types.ProfilerConfig) int {
	if showAll, _ := cmd.Flags().GetBool("all-journals"); showAll {
		return showAllJournals
	}
	if top, _ := cmd.Flags().GetInt("top"); top > 0 {
		return top
	}
	return cfg.Analysis.TopJournals
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func init() {
	runCmd.Flags().String("institution", "", "institution name as listed by the institutions command")
	runCmd.Flags().Bool("all", false, "profile every configured institution")
	runCmd.Flags().String("input", "", "merged input file (default: discovered under data/<Institution>/)")
	runCmd.Flags().String("agency", "", "parent agency to drill down on")
	runCmd.Flags().Float64Slice("target", nil, "concentration target percentages (default from config, 50)")
	runCmd.Flags().Int("top", 0, "journals to show (default from config, 20)")
	runCmd.Flags().Bool("all-journals", false, "show all journals")
	runCmd.Flags().Bool("no-snapshot", false, "skip writing CSV snapshots")
	runCmd.Flags().Bool("json", false, "output reports as JSON")

	rootCmd.AddCommand(runCmd)
}
