package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"amrfluid/config"
	"amrfluid/simulation"
)

var (
	verbose    bool
	configPath string
	steps      int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "amrsim",
	Short: "Two-level adaptive-mesh hydrodynamics with coarse-fine fix-up",
	Long: `amrsim advances a blast wave on a coarse periodic grid with one refined box.
Every coarse step runs the full-step update with min-mod retries on both levels,
then restriction, electric-field and flux correction of the coarse level.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance the simulation for a number of coarse steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDriver()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = d.Run(ctx, steps, func(diag simulation.Diagnostics) {
			logger.Info("step",
				zap.Int("step", diag.Step),
				zap.Float64("time", diag.Time),
				zap.Float64("dt", diag.Dt),
				zap.Float64("mass", diag.Mass),
				zap.Float64("energy", diag.Energy),
				zap.Float64("min_dens", diag.MinDens),
				zap.Int("retries", diag.Retries),
				zap.Int("rejected", diag.Rejected),
			)
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		logger.Info("run finished", zap.String("run_id", d.RunID().String()), zap.Int("steps", d.Diagnostics().Step))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and stream per-step diagnostics over a websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		d, err := newDriver(s)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, s, d, newHub(logger.Named("ws")))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "amrsim.yaml", "Settings file (defaults are used when it does not exist)")
	runCmd.Flags().IntVarP(&steps, "steps", "n", 20, "Number of coarse steps")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", configPath, err)
	}
	return s, nil
}

func loadDriver() (*simulation.Driver, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return newDriver(s)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
