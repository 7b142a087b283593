package simulation

import "time"

// Default run parameters.
const (
	DefaultPlayers        = 50
	DefaultPacksPerPlayer = 3
	DefaultReplayRatio    = 0.1
	DefaultSteps          = 24
	DefaultRoundDuration  = time.Hour
	DefaultTopN           = 10
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// PercentageMultiplier turns ratios into percentages.
const PercentageMultiplier = 100

// idleInterval keeps the engine's own timers out of a virtual run.
const idleInterval = 24 * time.Hour
