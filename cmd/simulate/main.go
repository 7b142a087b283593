package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/simulation"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		players    = flag.Int("players", simulation.DefaultPlayers, "Number of simulated players")
		packs      = flag.Int("packs", simulation.DefaultPacksPerPlayer, "Packs each player opens")
		replay     = flag.Float64("replay", simulation.DefaultReplayRatio, "Share of pack requests sent twice")
		steps      = flag.Int("steps", simulation.DefaultSteps, "Price ticks across the round")
		roundLen   = flag.Duration("round", simulation.DefaultRoundDuration, "Round length")
		seed       = flag.Int64("seed", 1, "Seed for prices, hands and packs")
		workers    = flag.Int("workers", runtime.NumCPU(), "Concurrent player workers")
		topN       = flag.Int("top", simulation.DefaultTopN, "Leaderboard rows to print")
		dbPath     = flag.String("db", "", "SQLite file receiving settlements")
		outputFile = flag.String("output", "", "JSON file for the full report")
		logFile    = flag.String("log", "", "File for structured logs")
		logLevel   = flag.String("log-level", "info", "Log level")
		verbose    = flag.Bool("verbose", false, "Log every player and price tick")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := simulation.SetupLogging(*logFile, *logLevel)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	// Engine settings follow the server's config file and environment.
	engine, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	report, err := simulation.Run(ctx, &simulation.Config{
		Engine:         engine,
		Players:        *players,
		PacksPerPlayer: *packs,
		ReplayRatio:    *replay,
		Steps:          *steps,
		RoundDuration:  *roundLen,
		Seed:           *seed,
		Workers:        *workers,
		TopN:           *topN,
		SettlementDB:   *dbPath,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}, os.Stdout)
	if err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if len(report.Problems) > 0 {
		os.Exit(2)
	}
}
