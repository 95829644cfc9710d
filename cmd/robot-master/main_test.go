package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const limitsDoc = `
joint_limits:
  joint_1: {min: -0.5, max: 0.5}
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func runCheck(t *testing.T, args []string, stdin string) checkReport {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, checkCommand(args, strings.NewReader(stdin), &out))

	var report checkReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	return report
}

func TestCheckForwarded(t *testing.T) {
	path := writeConfig(t, limitsDoc)
	report := runCheck(t, []string{"-c", path, "-r", `{"joint_0": 0.1, "joint_1": 0.2, "timestamp": 5}`}, "")
	assert.Equal(t, "forwarded", report.Verdict)
	assert.Equal(t, 0.2, report.Output.Joint1)
	assert.Equal(t, 5.0, report.Output.Timestamp)
	assert.Empty(t, report.Violations)
}

func TestCheckBlockedFromStdin(t *testing.T) {
	path := writeConfig(t, limitsDoc)
	report := runCheck(t, []string{"--config", path}, `{"joints": [0, 0.8, 0, 0, 0, 0], "timestamp": 1}`)
	assert.Equal(t, "blocked", report.Verdict)
	require.Len(t, report.Violations, 1)
	assert.Contains(t, report.Violations[0], "joint_1")
}

func TestCheckNoLimits(t *testing.T) {
	path := writeConfig(t, limitsDoc)
	report := runCheck(t, []string{"-c", path, "--no-limits", "-r", `{"joint_1": 9, "joint_0": 0}`}, "")
	assert.Equal(t, "forwarded", report.Verdict)
}

func TestCheckMalformedRecord(t *testing.T) {
	var out bytes.Buffer
	err := checkCommand([]string{"-r", `{"joints": [1, 2]}`}, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, validateCommand([]string{"-c", writeConfig(t, "transformation_matrix: [[1, 0]]\n")}, &out))
	assert.Contains(t, out.String(), "looks good")
	assert.Contains(t, out.String(), "warning:")

	err := validateCommand([]string{"-c", writeConfig(t, "joint_limits:\n  elbow: {min: 0, max: 1}\n")}, &out)
	assert.Error(t, err)
}

func TestParseSnapshot(t *testing.T) {
	text := `# HELP robot_messages_received_total Messages received.
# TYPE robot_messages_received_total counter
robot_messages_received_total 10
# TYPE robot_messages_blocked_total counter
robot_messages_blocked_total 3
# TYPE robot_block_ratio gauge
robot_block_ratio 0.3
`
	values, err := parseSnapshot(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, 10.0, values["robot_messages_received_total"])
	assert.Equal(t, 3.0, values["robot_messages_blocked_total"])
	assert.Equal(t, 0.3, values["robot_block_ratio"])
	assert.Equal(t, 0.0, values["robot_queue_length"])
}

func TestStatsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("robot_messages_received_total 4\nrobot_messages_published_total 4\n"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, statsCommand([]string{"--url", srv.URL, "--once"}, &out))
	assert.Contains(t, out.String(), "received=4 published=4 blocked=0")
}
