// Package budget estimates the maximum survivor count the next state can
// hold without exhausting system memory, grounded on
// zeam-labs-zeam-testnet's direct gopsutil/v3 usage for host-resource
// probing (there, disk/cpu; here, mem).
package budget

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/mem"
)

// PerObjectOverhead is the fixed bookkeeping cost (amplitude pair, offset
// entry, symbolic-buffer back-pointers) charged per surviving object,
// independent of its byte length.
const PerObjectOverhead = 64

// Estimate returns the maximum number of objects the next step's state can
// hold, given the average object byte size observed this step. On a
// gopsutil read failure it logs a warning and falls back to floor (the
// engine's memory probe is best-effort, matching SPEC_FULL.md §7's policy
// of never aborting a step over a telemetry read).
func Estimate(logger *slog.Logger, safetyMargin float64, avgObjectSize float64, floor int) int {
	vm, err := mem.VirtualMemory()
	if err != nil {
		if logger != nil {
			logger.Warn("memory budget probe failed, falling back to floor", slog.String("error", err.Error()))
		}
		return floor
	}

	usable := float64(vm.Available) - safetyMargin*float64(vm.Total)
	if usable < 0 {
		usable = 0
	}
	perObject := avgObjectSize + PerObjectOverhead
	if perObject <= 0 {
		perObject = PerObjectOverhead
	}

	// Halved to leave slack for the symbolic buffer built during the
	// following step, which is sized before the next truncation decision.
	maxObjects := int(usable/perObject) / 2
	if maxObjects < floor {
		return floor
	}
	return maxObjects
}
