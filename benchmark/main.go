// Package main provides a performance benchmarking tool for the clustervis CLI.
// It generates synthetic telemetry of increasing size, scores each dataset
// several times, treats the first successful cached run as cold and averages
// the rest as warm, and writes CSV output for performance analysis.
//
// Prerequisites:
// - clustervis binary installed and available in PATH
//
// Usage: go run benchmark/main.go [work-dir]
//
//	work-dir: Directory for generated datasets and cache files
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/parquet"
)

// BenchmarkResult holds the result of a benchmark run (no-cache average, cold run and average of warm runs).
type BenchmarkResult struct {
	Dataset     string
	Shape       string
	NoCacheTime string
	ColdTime    string
	WarmTime    string
}

// Dataset describes one synthetic telemetry file.
type Dataset struct {
	Name     string
	Nodes    int
	Minutes  int
	Features int
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	WorkDir     string
	Timeout     time.Duration
	Workers     int
	NoCacheRuns int
	CacheRuns   int
	Datasets    []Dataset
}

func main() {
	// Parse command line arguments
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [work-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		WorkDir:     os.Args[1],
		Timeout:     5 * time.Minute,
		Workers:     14,
		NoCacheRuns: 3,
		CacheRuns:   4,
		Datasets: []Dataset{
			{Name: "small", Nodes: 16, Minutes: 120, Features: 4},
			{Name: "medium", Nodes: 64, Minutes: 720, Features: 8},
			{Name: "large", Nodes: 256, Minutes: 1440, Features: 16},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}

	printSummary(results)
}

// checkPrerequisites verifies that the clustervis binary exists and the work dir is usable
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("clustervis"); err != nil {
		return fmt.Errorf("clustervis binary not found in PATH")
	}
	return os.MkdirAll(config.WorkDir, 0o755)
}

// runBenchmarks generates every dataset and benchmarks scoring on it
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d datasets, %v timeout, %d workers, no-cache: %d runs, cache: %d runs\n",
		len(config.Datasets), config.Timeout, config.Workers, config.NoCacheRuns, config.CacheRuns)

	for _, ds := range config.Datasets {
		fmt.Printf("Benchmarking %s\n", ds.Name)

		path := filepath.Join(config.WorkDir, ds.Name+".parquet")
		if err := parquet.WriteFile(generate(ds), path); err != nil {
			fmt.Printf("  Failed to generate dataset: %v\n", err)
			continue
		}
		results = append(results, runBenchmarkSuite(config, ds, path))
	}

	return results
}

// runBenchmarkSuite runs both no-cache and cache benchmarks for a dataset
func runBenchmarkSuite(config BenchmarkConfig, ds Dataset, path string) BenchmarkResult {
	// Helper to run a benchmark phase
	runPhase := func(cacheArgs []string, numRuns int, phaseName string) (coldTime float64, avgTime string) {
		fmt.Printf("  %s phase (%d runs)\n", phaseName, numRuns)
		cold, times := runBenchmark(config, path, cacheArgs, numRuns)
		if len(times) == 0 {
			avgTime = "TIMEOUT"
		} else {
			var sum float64
			for _, t := range times {
				sum += t
			}
			avgTime = fmt.Sprintf("%.3fs", sum/float64(len(times)))
		}
		return cold, avgTime
	}

	// Phase 1: No-cache runs
	_, noCacheAvg := runPhase([]string{"--cache-backend", "none"}, config.NoCacheRuns, "No-cache")

	// Phase 2: Cache runs against a fresh SQLite file
	cacheDB := filepath.Join(config.WorkDir, ds.Name+".baselines.db")
	_ = os.Remove(cacheDB)
	coldTime, warmAvg := runPhase([]string{"--cache-backend", "sqlite", "--cache-db-connect", cacheDB}, config.CacheRuns, "Cache")

	coldTimeStr := "TIMEOUT"
	if coldTime > 0 {
		coldTimeStr = fmt.Sprintf("%.3fs", coldTime)
	}

	fmt.Printf("  No-cache average: %s, Cold time: %s, Warm average: %s\n", noCacheAvg, coldTimeStr, warmAvg)

	return BenchmarkResult{
		Dataset:     ds.Name,
		Shape:       fmt.Sprintf("%dx%dx%d", ds.Nodes, ds.Minutes, ds.Features),
		NoCacheTime: noCacheAvg,
		ColdTime:    coldTimeStr,
		WarmTime:    warmAvg,
	}
}

// runBenchmark scores path numRuns times and returns the cold time and warm times
func runBenchmark(config BenchmarkConfig, path string, cacheArgs []string, numRuns int) (coldTime float64, warmTimes []float64) {
	args := append([]string{"score", path, "--output", "json", "--workers", fmt.Sprint(config.Workers)}, cacheArgs...)

	var times []float64
	for run := 1; run <= numRuns; run++ {
		start := time.Now()

		cmd := exec.Command("clustervis", args...)

		done := make(chan bool)
		var output []byte
		var cmdErr error

		go func() {
			output, cmdErr = cmd.Output()
			done <- true
		}()

		select {
		case <-done:
			if cmdErr == nil && isSuccess(output) {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	if len(times) > 0 {
		coldTime = times[0]
		warmTimes = times[1:]
	}
	return
}

// isSuccess checks that the output is a score result with ranked nodes
func isSuccess(output []byte) bool {
	var result struct {
		Nodes []json.RawMessage `json:"nodes"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return false
	}
	return len(result.Nodes) > 0
}

// generate builds a dataset where the last node drifts during the final third.
func generate(ds Dataset) []parquet.Observation {
	start := time.Date(2024, 2, 21, 0, 0, 0, 0, time.UTC)
	out := make([]parquet.Observation, 0, ds.Nodes*ds.Minutes*ds.Features)
	for i := range ds.Nodes {
		node := fmt.Sprintf("node-%03d", i)
		for j := range ds.Minutes {
			ts := start.Add(time.Duration(j) * time.Minute)
			for k := range ds.Features {
				v := 100 + 20*math.Sin(float64(j)/30+float64(k)) + float64(i%7)
				if i == ds.Nodes-1 && j >= 2*ds.Minutes/3 {
					v *= 3
				}
				out = append(out, parquet.Observation{NodeID: node, Timestamp: ts, Feature: fmt.Sprintf("f%02d", k), Value: v})
			}
		}
	}
	return out
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/clustervis_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"dataset", "shape", "no_cache_avg", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Write results
	for _, result := range results {
		if err := writer.Write([]string{result.Dataset, result.Shape, result.NoCacheTime, result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-8s %-14s: No-cache: %s, Cold: %s, Warm: %s\n",
			result.Dataset, result.Shape, result.NoCacheTime, result.ColdTime, result.WarmTime)
	}
}
