package state

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProcessAliveSelf(t *testing.T) {
	require.True(t, ProcessAlive(os.Getpid()))
}

func TestProcessAliveBadPIDs(t *testing.T) {
	require.False(t, ProcessAlive(0))
	require.False(t, ProcessAlive(-1))
	require.False(t, ProcessAlive(1<<30))
}

func TestProcessAliveZombie(t *testing.T) {
	cmd := exec.Command("sleep", "0")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	// The child exits almost immediately but stays a zombie until reaped.
	require.Eventually(t, func() bool {
		return !ProcessAlive(pid)
	}, 3*time.Second, 25*time.Millisecond)

	require.NoError(t, cmd.Wait())
}

func TestReadStatsSelf(t *testing.T) {
	st, err := ReadStats(os.Getpid())
	require.NoError(t, err)
	require.NotNil(t, st)
	require.GreaterOrEqual(t, st.CPUPercent, 0.0)
	require.Greater(t, st.MemoryMB, uint64(0))
}

func TestReadStatsMissingProcess(t *testing.T) {
	_, err := ReadStats(1 << 30)
	require.Error(t, err)
}
