package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/internal/parquet"
	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/olekukonko/tablewriter"
)

const baselineTimeFormat = "2006-01-02 15:04:05"

// WriteBaselineRecords outputs baseline records, dispatching based on the output format configured.
func WriteBaselineRecords(records []schema.BaselineRecord, cfg *contract.Config) error {
	fmtFloat := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if records == nil {
			records = []schema.BaselineRecord{}
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, records)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeBaselinesCSV(w, records, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if cfg.OutputFile == "" {
			return errors.New("--output-file is required for parquet output")
		}
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteRows(w, parquet.ConvertBaselineRecords(records))
		}, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeBaselineTable(w, records, fmtFloat)
		}, "Wrote table")
	}
}

// fallbackNote describes which fallbacks produced a record.
func fallbackNote(r schema.BaselineRecord) string {
	var notes []string
	if r.WindowFallback {
		notes = append(notes, "window")
	}
	if r.RangeFallback {
		notes = append(notes, "range")
	}
	if len(notes) == 0 {
		return "-"
	}
	return strings.Join(notes, "+")
}

// writeBaselineTable generates and writes the human-readable table.
func writeBaselineTable(w io.Writer, records []schema.BaselineRecord, fmtFloat func(float64) string) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Feature", "Start", "End", "Min", "Max", "Levels", "Fallback", "Created"})

	var data [][]string
	for _, r := range records {
		data = append(data, []string{
			r.Feature,
			r.BStart.UTC().Format(baselineTimeFormat),
			r.BEnd.UTC().Format(baselineTimeFormat),
			fmtFloat(r.VMin),
			fmtFloat(r.VMax),
			strconv.Itoa(len(r.ZScore)),
			fallbackNote(r),
			r.CreatedAt.Local().Format(baselineTimeFormat),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d baselines cached\n", len(records))
	return err
}

// writeBaselinesCSV writes one row per record; the reference score is pipe separated.
func writeBaselinesCSV(w io.Writer, records []schema.BaselineRecord, fmtFloat func(float64) string) error {
	header := []string{"feature", "b_start", "b_end", "v_min", "v_max", "z_score", "window_fallback", "range_fallback", "created_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range records {
			z := make([]string, len(r.ZScore))
			for i, v := range r.ZScore {
				z[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			rec := []string{
				r.Feature,
				r.BStart.UTC().Format(time.RFC3339),
				r.BEnd.UTC().Format(time.RFC3339),
				fmtFloat(r.VMin),
				fmtFloat(r.VMax),
				strings.Join(z, "|"),
				strconv.FormatBool(r.WindowFallback),
				strconv.FormatBool(r.RangeFallback),
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
