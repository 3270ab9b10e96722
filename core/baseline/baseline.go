// Package baseline discovers, caches and applies the per-feature baselines
// that node anomaly scores are measured against.
package baseline

import (
	"errors"

	"github.com/allisonaustin/cluster-vis/internal/contract"
)

var (
	// ErrNoBaseline marks a feature that has no usable baseline.
	ErrNoBaseline = errors.New("no usable baseline")

	// ErrUnknownFeature marks a feature absent from the observation table.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrInvalidOverride marks a rejected manual range or window.
	ErrInvalidOverride = errors.New("invalid override")
)

// Options are the tunables shared by the builder, cache and scorer.
type Options struct {
	Workers    int
	MaxLevels  int
	MaxCycles  int
	MaxColumns int
	RangeK     float64
	RangeExt   float64
	TileMargin int
}

// DefaultOptions returns the stock tunables.
func DefaultOptions() Options {
	return Options{
		Workers:    contract.DefaultWorkers,
		MaxLevels:  contract.DefaultMaxLevels,
		MaxCycles:  contract.DefaultMaxCycles,
		MaxColumns: contract.DefaultMaxColumns,
		RangeK:     contract.DefaultRangeK,
		RangeExt:   contract.DefaultRangeExt,
		TileMargin: contract.DefaultTileMargin,
	}
}

// OptionsFromConfig copies the tunables out of a validated config.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		Workers:    cfg.Workers,
		MaxLevels:  cfg.MaxLevels,
		MaxCycles:  cfg.MaxCycles,
		MaxColumns: cfg.MaxColumns,
		RangeK:     cfg.RangeK,
		RangeExt:   cfg.RangeExt,
		TileMargin: cfg.TileMargin,
	}
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return contract.DefaultWorkers
	}
	return o.Workers
}

func (o Options) maxColumns() int {
	if o.MaxColumns <= 0 {
		return contract.DefaultMaxColumns
	}
	return o.MaxColumns
}

func indexRange(from, to int) []int {
	out := make([]int, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
