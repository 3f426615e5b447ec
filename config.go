package iqs

import "log/slog"

// Config holds the tunables for a simulator. A zero-value Config is filled
// in with defaults by applyDefaults the way jmt.Config's zero fields are
// filled in by NewStateTree.
type Config struct {
	// Tolerance is the amplitude-squared cutoff below which a survivor is
	// pruned after interference.
	Tolerance float64

	// SafetyMargin is the fraction of total system RAM the memory-budget
	// oracle holds in reserve (not offered to the next state).
	SafetyMargin float64

	// CollisionTestProportion is the fraction of candidates scanned before
	// the stage-4 short-circuit decides the data is "mostly unique".
	CollisionTestProportion float64

	// CollisionTolerance is the fraction of the test prefix allowed to
	// collide before the short-circuit gives up and falls back to a full
	// scan.
	CollisionTolerance float64

	// StrictInterference disables the stage-4 adaptive short-circuit,
	// forcing a full scan every step. See the Open Question decision in
	// DESIGN.md.
	StrictInterference bool

	// MinVectorSize is the floor below which the memory-budget oracle will
	// not shrink maxNumObject, even under extreme memory pressure.
	MinVectorSize int

	// MinEqualizeSize is the minimum per-rank object count below which the
	// equalizer will not bother migrating objects.
	MinEqualizeSize int

	// EqualizeImbalance is the (max-avg)/max threshold below which the
	// equalizer considers ranks balanced.
	EqualizeImbalance float64

	// DoubleHandshakeEqualize reproduces the reference implementation's
	// duplicated send/recv pair per equalizer round. Default false (clean
	// single exchange). See the Open Question decision in DESIGN.md.
	DoubleHandshakeEqualize bool

	// Workers caps the number of goroutines used per parallel stage. Zero
	// means runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives structured step/stage diagnostics. A nil Logger gets
	// slog.Default().
	Logger *slog.Logger
}

func (c Config) applyDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-12
	}
	if c.SafetyMargin <= 0 {
		c.SafetyMargin = 0.25
	}
	if c.CollisionTestProportion <= 0 {
		c.CollisionTestProportion = 0.1
	}
	if c.CollisionTolerance <= 0 {
		c.CollisionTolerance = 0.05
	}
	if c.MinVectorSize <= 0 {
		c.MinVectorSize = 1024
	}
	if c.MinEqualizeSize <= 0 {
		c.MinEqualizeSize = 256
	}
	if c.EqualizeImbalance <= 0 {
		c.EqualizeImbalance = 0.1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
