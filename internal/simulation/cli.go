package simulation

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/bullrun/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends structured logs to logFile, or discards them when
// logFile is empty so the report tables stay readable. The returned func
// closes the file.
func SetupLogging(logFile, level string) (func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		w = file
		closeFn = func() { _ = file.Close() }
	}
	if err := logger.InitWithWriter(w, "json"); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetLevelString(level); err != nil {
		closeFn()
		return nil, err
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp(out io.Writer) {
	_, _ = io.WriteString(out, `Bullrun Round Simulator
=======================

Plays one full round against the game engine on a virtual clock: players
submit hands and open packs, prices random-walk across the round, the round
closes and pays out, and the result is printed as tables.

Usage:
  go run ./cmd/simulate [options]

Options:
  -players int
        Number of simulated players (default 50)
  -packs int
        Packs each player opens (default 3)
  -replay float
        Share of pack requests sent twice (default 0.1)
  -steps int
        Price ticks across the round (default 24)
  -round duration
        Round length (default 1h)
  -seed int
        Seed for prices, hands and packs (default 1)
  -workers int
        Concurrent player workers (default CPU cores)
  -top int
        Leaderboard rows to print (default 10)
  -db string
        SQLite file receiving settlements (default: log only)
  -output string
        JSON file for the full report
  -log string
        File for structured logs (default: discarded)
  -log-level string
        debug, info, warn or error (default "info")
  -verbose
        Log every player and price tick
  -help
        Show this help message

Examples:
  # One round with defaults
  go run ./cmd/simulate

  # A busy day-long round settled into SQLite
  go run ./cmd/simulate -players 500 -round 24h -steps 96 -db settlements.db
`)
}
