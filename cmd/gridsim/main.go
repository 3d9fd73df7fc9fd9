package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gridsim/internal/api"
	"gridsim/internal/config"
	"gridsim/internal/export"
	"gridsim/internal/ledger"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gridsim",
		Short: "Hierarchical energy market simulator",
		Long: `gridsim runs a time-sliced simulation of a hierarchical energy market:
areas trade through nested markets, forwarding agents bridge every
parent/child boundary, and a REST API exposes live control of the run.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStrategiesCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run CONFIG",
		Short: "Run a simulation from a YAML config",
		Long: `Run a simulation described by a YAML config file.
Example: gridsim run examples/config.yaml --slowdown=5 --port=5000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args[0])
		},
	}

	cmd.Flags().Duration("duration", 0, "Override simulated duration (e.g. 24h)")
	cmd.Flags().Duration("slot-length", 0, "Override slot length (e.g. 15m)")
	cmd.Flags().Duration("tick-length", 0, "Override tick length (e.g. 15s)")
	cmd.Flags().IntP("market-count", "m", 0, "Override the number of concurrently open market slots per area")
	cmd.Flags().Int("slowdown", -1, "Override pacing factor 0-100 (0 = as fast as possible)")
	cmd.Flags().Int64("seed", -1, "Override random seed")
	cmd.Flags().Bool("paused", false, "Start paused; resume via the API")
	cmd.Flags().Duration("pause-after", 0, "Pause once this much simulated time has elapsed")
	cmd.Flags().Int("port", 0, "Serve the control API on this port (0 disables it)")
	cmd.Flags().String("export-dir", "", "Write CSV/JSON results under this directory when the run finishes")
	return cmd
}

func runSimulation(cmd *cobra.Command, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sc := cfg.SimConfig()
	applyOverrides(cmd, &sc)

	root, err := cfg.BuildTopology()
	if err != nil {
		return fmt.Errorf("build topology: %w", err)
	}
	if cfg.Ledger.RedisAddr != "" {
		l, err := ledger.NewRedisLedger(cfg.Ledger.RedisAddr, cfg.Ledger.RedisPassword, cfg.Ledger.RedisDB)
		if err != nil {
			return fmt.Errorf("settlement ledger: %w", err)
		}
		defer l.Close()
		root.SetSettlement(l)
	}

	s, err := sim.New(sc, root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		router := api.NewRouter(s)
		go func() {
			addr := fmt.Sprintf(":%d", port)
			log.Info().Str("addr", addr).Msg("control API listening")
			if err := router.Run(addr); err != nil {
				log.Error().Err(err).Msg("control API stopped")
			}
		}()
	}

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	if dir, _ := cmd.Flags().GetString("export-dir"); dir != "" {
		if err := export.WriteAll(s.Root(), dir); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		log.Info().Str("dir", dir).Msg("results exported")
	}
	return nil
}

func applyOverrides(cmd *cobra.Command, sc *sim.Config) {
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		sc.Duration = d
	}
	if d, _ := cmd.Flags().GetDuration("slot-length"); d > 0 {
		sc.SlotLength = d
	}
	if d, _ := cmd.Flags().GetDuration("tick-length"); d > 0 {
		sc.TickLength = d
	}
	if n, _ := cmd.Flags().GetInt("market-count"); n > 0 {
		sc.MarketCount = n
	}
	if f, _ := cmd.Flags().GetInt("slowdown"); f >= 0 {
		sc.Slowdown = f
	}
	if seed, _ := cmd.Flags().GetInt64("seed"); seed >= 0 {
		sc.Seed = seed
	}
	if paused, _ := cmd.Flags().GetBool("paused"); paused {
		sc.StartPaused = true
	}
	if d, _ := cmd.Flags().GetDuration("pause-after"); d > 0 {
		sc.PauseAfter = d
	}
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available strategy types",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range strategy.Types() {
				fmt.Println(t)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gridsim v0.1.0")
		},
	}
}
