package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voltlab/electric/internal/analysis"
	"github.com/voltlab/electric/pkg/adapters/process"
	"github.com/voltlab/electric/pkg/adapters/tinker"
	"github.com/voltlab/electric/pkg/domain"
	"github.com/voltlab/electric/pkg/ports"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate probe electric fields over a trajectory",
	Long: `Replays each trajectory frame through the engine and sums the direct
and induced field contributions at the probe atoms over topology
fragments. Writes dfield.csv and ufield.csv with one row per frame.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAnalyze(cmd); err != nil {
			fail(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().String("snap", "", "Trajectory file (xyz/arc) to analyze")
	analyzeCmd.Flags().IntSlice("probes", nil, "Probe atom numbers (1-based), overrides the config")
	analyzeCmd.Flags().Bool("byres", false, "Aggregate contributions by residue")
	analyzeCmd.Flags().Bool("bymol", false, "Aggregate contributions by molecule")
	analyzeCmd.Flags().StringP("out", "o", ".", "Directory for the output CSV files")
	analyzeCmd.MarkFlagRequired("snap")
}

func runAnalyze(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	byres, _ := cmd.Flags().GetBool("byres")
	bymol, _ := cmd.Flags().GetBool("bymol")
	if byres && bymol {
		return &domain.ConfigError{Field: "group_by", Reason: "--byres and --bymol are mutually exclusive"}
	}
	groupBy := domain.GroupBy(cfg.Analysis.GroupBy)
	if byres {
		groupBy = domain.ByResidue
	}
	if bymol {
		groupBy = domain.ByMolecule
	}

	probes := cfg.Analysis.Probes
	if flagProbes, _ := cmd.Flags().GetIntSlice("probes"); len(flagProbes) > 0 {
		probes = flagProbes
	}

	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.Engine.WorkDir, p)
	}
	if cfg.Files.Topology == "" || cfg.Files.Snapshot == "" || cfg.Files.Fields == "" {
		return &domain.ConfigError{Field: "files", Reason: "snapshot, fields and topology are required for analysis"}
	}

	topo, err := tinker.DecodeTopology(resolve(cfg.Files.Topology))
	if err != nil {
		return err
	}
	analyzer, err := analysis.New(topo, probes, groupBy)
	if err != nil {
		return err
	}

	snapPath, _ := cmd.Flags().GetString("snap")
	traj, err := tinker.OpenTrajectory(snapPath)
	if err != nil {
		return err
	}
	defer traj.Close()
	if err := analyzer.CheckFrame(traj.NAtoms()); err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	dfieldOut, err := os.Create(filepath.Join(outDir, "dfield.csv"))
	if err != nil {
		return err
	}
	defer dfieldOut.Close()
	ufieldOut, err := os.Create(filepath.Join(outDir, "ufield.csv"))
	if err != nil {
		return err
	}
	defer ufieldOut.Close()

	dfieldCSV := analysis.NewCSVWriter(dfieldOut, analyzer)
	ufieldCSV := analysis.NewCSVWriter(ufieldOut, analyzer)

	launcher := process.NewLauncher(process.WithLogger(logger))
	spec := ports.LaunchSpec{
		Path:    cfg.Engine.Path,
		Args:    cfg.Engine.Args,
		Dir:     cfg.Engine.WorkDir,
		Timeout: cfg.Engine.StepTimeout.Std(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frames := 0
	for {
		frame, err := traj.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		frames++

		if err := tinker.WriteSnapshot(frame, resolve(cfg.Files.Snapshot)); err != nil {
			return err
		}
		if _, err := launcher.Launch(ctx, spec); err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}
		direct, induced, err := tinker.DecodeFields(resolve(cfg.Files.Fields))
		if err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}

		directSums, err := analyzer.Reduce(direct)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}
		inducedSums, err := analyzer.Reduce(induced)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frames, err)
		}

		if err := dfieldCSV.WriteFrame(frames, directSums); err != nil {
			return err
		}
		if err := ufieldCSV.WriteFrame(frames, inducedSums); err != nil {
			return err
		}
		logger.Debug("frame analyzed", "frame", frames)
	}

	if err := dfieldCSV.Flush(); err != nil {
		return err
	}
	if err := ufieldCSV.Flush(); err != nil {
		return err
	}

	logger.Info("analysis complete", "frames", frames, "probes", len(analyzer.Probes()), "fragments", len(analyzer.Fragments()))
	return nil
}
