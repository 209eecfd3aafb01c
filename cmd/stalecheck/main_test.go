package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	t.Logf("stderr:\n%s", stderr.String())
	return stdout.String(), err
}

func seedLogs(t *testing.T, machine int) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]string{
		"update%d-0.txt": {
			"U,1,0,1,10,20,1,I,0",
			"U,2,0,2,10,20,1,I,0",
			"U,3,0,2,30,40,1,D,0",
		},
		"update%d-1.txt": {
			"Item,1,1,5,12,18,1,I,0",
		},
		"read%d-0.txt": {
			"U,7,0,1,21,25,1,0",
			"U,7,0,2,41,45,1,0",
			"U,8,0,9,1,2,0,0",
		},
		"read%d-1.txt": {
			"Item,4,1,5,15,16,0,0",
		},
	}
	for pattern, lines := range files {
		name := fmt.Sprintf(pattern, machine)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	}
	return dir
}

func TestValidateCommand(t *testing.T) {
	dir := seedLogs(t, 0)
	out, err := run(t, "validate",
		"--logdir", dir,
		"--threadcount", "2",
		"--validationthreads", "2",
		"--validationblock", "2",
		"--ratingmode",
	)
	require.NoError(t, err)

	const markers = "StartingValidation UpdatesInDB DoneReadCycles DoneReadValidation PopulateStats "
	require.True(t, strings.HasPrefix(out, markers), out)

	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(out, markers)), &report))
	assert.EqualValues(t, 4, report.NumWriteOps)
	assert.EqualValues(t, 4, report.NumReadOps)
	assert.EqualValues(t, 3, report.NumProcessed)
	assert.EqualValues(t, 1, report.NumStaleOps)
	assert.EqualValues(t, 1, report.NumPruned)
	assert.EqualValues(t, 3, report.NumReadSessions)
	assert.EqualValues(t, 1, report.NumStaleSessions)
}

func TestValidateSnapshotAndInspect(t *testing.T) {
	dir := seedLogs(t, 0)
	out := t.TempDir()
	snap := filepath.Join(out, "timelines.stl")
	reportPath := filepath.Join(out, "report.yaml")
	metrics := filepath.Join(out, "stalecheck.prom")

	_, err := run(t,
		"--logdir", dir,
		"--threadcount", "2",
		"--snapshot.out", snap,
		"--report", reportPath,
		"--format", "yaml",
		"--metricsfile", metrics,
	)
	require.NoError(t, err)
	require.FileExists(t, reportPath)
	require.FileExists(t, metrics)

	yamlReport, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(yamlReport), "NumStaleOps: 1")

	inspect, err := run(t, "inspect", snap, "--resources", "--histogram", "10", "--optype", "U")
	require.NoError(t, err)
	assert.Contains(t, inspect, "intervals: 4")
	assert.Contains(t, inspect, "resources: 3")
	assert.Contains(t, inspect, "Item-5")
	assert.Contains(t, inspect, "BUCKET")

	// Replaying from the snapshot judges the reads the same way.
	replayed, err := run(t, "--logdir", dir, "--threadcount", "2", "--snapshot.in", snap)
	require.NoError(t, err)
	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(replayed), &report))
	assert.EqualValues(t, 4, report.NumWriteOps)
	assert.EqualValues(t, 1, report.NumStaleOps)
}

func TestValidateRDBMS(t *testing.T) {
	dir := seedLogs(t, 0)
	db := filepath.Join(t.TempDir(), "updates.db")
	out, err := run(t,
		"--logdir", dir,
		"--threadcount", "2",
		"--tenant", "multi",
		"--validationapproach", "RDBMS",
		"--validation.driver", "sqlite",
		"--validation.url", db,
	)
	require.NoError(t, err)
	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.EqualValues(t, 1, report.NumStaleOps)
}

func TestMergeCommand(t *testing.T) {
	out := t.TempDir()
	var paths []string
	for _, machine := range []int{0, 1} {
		path := filepath.Join(out, "report"+strconv.Itoa(machine)+".json")
		_, err := run(t,
			"--logdir", seedLogs(t, machine),
			"--machineid", strconv.Itoa(machine),
			"--threadcount", "2",
			"--report", path,
		)
		require.NoError(t, err)
		paths = append(paths, path)
	}

	merged, err := run(t, append([]string{"merge"}, paths...)...)
	require.NoError(t, err)
	var report engine.Report
	require.NoError(t, json.Unmarshal([]byte(merged), &report))
	assert.EqualValues(t, 8, report.NumWriteOps)
	assert.EqualValues(t, 8, report.NumReadOps)
	assert.EqualValues(t, 2, report.NumStaleOps)
	assert.Len(t, report.MergedRunIDs, 2)
	assert.InDelta(t, 0.25, report.StalenessRatio, 1e-9)
}

func TestInvalidConfigFails(t *testing.T) {
	_, err := run(t, "--validationthreads", "0", "--logdir", t.TempDir())
	require.Error(t, err)
	_, err = run(t, "--filter", "color:red", "--logdir", t.TempDir())
	require.Error(t, err)
	_, err = run(t, "--filter", "optype:U", "--snapshot.in", "timelines.stl", "--logdir", t.TempDir())
	require.ErrorContains(t, err, "snapshot.in")
}
