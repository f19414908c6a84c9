package cmds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/voicectl/pkg/state"
)

func TestGuardPreviousRun(t *testing.T) {
	dir := t.TempDir()

	// No recorded run at all.
	require.NoError(t, guardPreviousRun(dir))

	// A recorded run whose process is gone is stale, not blocking.
	run := state.NewRun("docker")
	run.Services = append(run.Services, state.ServiceRecord{
		Name:      "stt",
		PID:       1 << 30,
		Log:       "stt_service.log",
		HealthURL: "http://localhost:8000/docs",
	})
	require.NoError(t, state.Save(dir, run))
	require.NoError(t, guardPreviousRun(dir))

	// A live PID refuses the start.
	run.Services[0].PID = os.Getpid()
	require.NoError(t, state.Save(dir, run))
	err := guardPreviousRun(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "voicectl down")
}

func TestGuardPreviousRunUnreadableState(t *testing.T) {
	dir := t.TempDir()
	path := state.Path(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	// A mangled state file is warned about, never a reason to refuse.
	require.NoError(t, guardPreviousRun(dir))
}
