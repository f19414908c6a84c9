package cmds

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/voicectl/pkg/config"
	"github.com/go-go-golems/voicectl/pkg/state"
)

func testStack() *config.Stack {
	return &config.Stack{
		Services: []config.Service{
			{Name: "stt", Script: "/opt/stt.sh", Log: "stt_service.log", HealthURL: "http://localhost:8000/docs"},
			{Name: "tts", Container: "fatterbox-tts", Log: "tts_service.log", HealthURL: "http://localhost:8005/docs"},
		},
	}
}

func TestLogTargetsFromConfig(t *testing.T) {
	dir := t.TempDir()
	opts := rootOptions{Dir: dir}

	targets, err := logTargets(opts, testStack(), nil)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "stt", targets[0].name)
	require.Equal(t, filepath.Join(dir, "stt_service.log"), targets[0].log)
	require.Equal(t, "tts", targets[1].name)
}

func TestLogTargetsSelection(t *testing.T) {
	dir := t.TempDir()
	opts := rootOptions{Dir: dir}

	targets, err := logTargets(opts, testStack(), []string{"tts"})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, "tts", targets[0].name)

	_, err = logTargets(opts, testStack(), []string{"nope"})
	require.Error(t, err)
}

func TestLogTargetsPreferRecordedRun(t *testing.T) {
	dir := t.TempDir()
	opts := rootOptions{Dir: dir}

	run := state.NewRun("docker")
	run.Services = append(run.Services,
		state.ServiceRecord{Name: "stt", PID: 1, Log: filepath.Join(dir, "other.log")},
		state.ServiceRecord{Name: "extra", PID: 2, Log: filepath.Join(dir, "extra.log")},
	)
	require.NoError(t, state.Save(dir, run))

	targets, err := logTargets(opts, testStack(), nil)
	require.NoError(t, err)
	require.Len(t, targets, 3)
	require.Equal(t, filepath.Join(dir, "other.log"), targets[0].log)
	require.Equal(t, "extra", targets[2].name)
}

func TestParseSince(t *testing.T) {
	ts, err := parseSince("15m")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(-15*time.Minute), ts, 2*time.Second)

	ts, err = parseSince("2026-08-25 10:00:00")
	require.NoError(t, err)
	require.Equal(t, 2026, ts.Year())
	require.Equal(t, time.August, ts.Month())

	_, err = parseSince("whenever")
	require.Error(t, err)
}

func TestLeadingTimestamp(t *testing.T) {
	ts, ok := leadingTimestamp("2030/01/02 10:11:12 something happened")
	require.True(t, ok)
	require.Equal(t, 2030, ts.Year())

	ts, ok = leadingTimestamp("[2030-01-02T10:11:12Z] bracketed")
	require.True(t, ok)
	require.Equal(t, 2030, ts.Year())

	_, ok = leadingTimestamp("INFO:     Uvicorn running on http://0.0.0.0:8000")
	require.False(t, ok)

	_, ok = leadingTimestamp("")
	require.False(t, ok)
}

func TestLineBefore(t *testing.T) {
	cutoff := time.Date(2029, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, lineBefore("2020-05-05T10:00:00Z old line", cutoff))
	require.False(t, lineBefore("2030-05-05T10:00:00Z new line", cutoff))
	require.False(t, lineBefore("no timestamp here", cutoff))
	require.False(t, lineBefore("2020-05-05T10:00:00Z old line", time.Time{}))
}
