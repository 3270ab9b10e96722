// Package outwriter has output and writer logic.
package outwriter

import (
	"os"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteScores prints a pipeline result using the configured output format.
func (ow *OutWriter) WriteScores(result *schema.RunResult, cfg *contract.Config) error {
	return WriteScoreResults(result, cfg)
}

// WriteBaselines prints baseline records using the configured output format.
func (ow *OutWriter) WriteBaselines(records []schema.BaselineRecord, cfg *contract.Config) error {
	return WriteBaselineRecords(records, cfg)
}

// Table layout widths, in terminal columns including borders and padding.
const (
	fixedColumnsWidth  = 48 // Rank + Node + Max + Label
	featureColumnWidth = 12
	defaultTermWidth   = 80
)

// GetMaxFeatureColumns returns how many feature columns fit next to the
// fixed columns of the score table.
func GetMaxFeatureColumns(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth <= 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = defaultTermWidth // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}
	available := (termWidth - fixedColumnsWidth) / featureColumnWidth
	return max(available, 1)
}
