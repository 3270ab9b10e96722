//go:build basic || database

package integration

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	// sharedBinaryPath holds the path to a clustervis binary built once for all tests.
	sharedBinaryPath string

	// buildOnce ensures we only build the binary once.
	buildOnce sync.Once

	// buildMutex protects the shared binary path.
	buildMutex sync.Mutex

	// tempDir holds the temp directory for cleanup.
	tempDir string
)

// TestMain handles setup and cleanup for all integration tests.
func TestMain(m *testing.M) {
	// Run all tests
	code := m.Run()

	// Cleanup the shared binary after all tests
	if tempDir != "" {
		_ = os.RemoveAll(tempDir)
	}

	os.Exit(code)
}

// getBinary returns the path to the clustervis binary, building it once if needed.
func getBinary() string {
	buildMutex.Lock()
	defer buildMutex.Unlock()

	buildOnce.Do(func() {
		// Create a temp directory for the binary
		var err error
		tempDir, err = os.MkdirTemp("", "clustervis-integration-*")
		if err != nil {
			panic(fmt.Sprintf("failed to create temp dir: %v", err))
		}

		binaryPath := filepath.Join(tempDir, "clustervis")
		buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
		buildCmd.Dir = ".." // Build from parent directory (project root)
		err = buildCmd.Run()
		if err != nil {
			panic(fmt.Sprintf("failed to build clustervis: %v", err))
		}

		sharedBinaryPath = binaryPath
	})

	return sharedBinaryPath
}

// runCommand runs clustervis in dir and returns its stdout.
func runCommand(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(getBinary(), args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			t.Logf("Command failed: %s\nStderr: %s", cmd.String(), string(exitErr.Stderr))
		}
		return "", err
	}
	return string(output), nil
}

// writeTelemetry writes a five node CSV where node-e misbehaves during the
// second half of the recording.
func writeTelemetry(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "telemetry.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"nodeId", "timestamp", "rx", "tx"}))
	start := time.Date(2024, 2, 21, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		node := fmt.Sprintf("node-%c", 'a'+i)
		for j := range 40 {
			v := 10 + float64(i) + float64(j%4)
			if i == 4 && j >= 20 {
				v *= 20
			}
			require.NoError(t, w.Write([]string{
				node,
				start.Add(time.Duration(j) * time.Minute).Format(time.RFC3339),
				strconv.FormatFloat(v, 'f', 2, 64),
				strconv.FormatFloat(v/2, 'f', 2, 64),
			}))
		}
	}
	w.Flush()
	require.NoError(t, w.Error())
	return path
}
