package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, path string, n int) {
	t.Helper()
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "line %03d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func TestTailLinesLastN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	writeLines(t, path, 50)

	lines, err := TailLines(path, 10, 0)
	require.NoError(t, err)
	require.Len(t, lines, 10)
	require.Equal(t, "line 041", lines[0])
	require.Equal(t, "line 050", lines[9])
}

func TestTailLinesShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	writeLines(t, path, 3)

	lines, err := TailLines(path, 10, 0)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, "line 001", lines[0])
}

func TestTailLinesDropsPartialFirstLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svc.log")
	writeLines(t, path, 100)

	// A tight byte cap lands mid-line; the fragment must not show up.
	lines, err := TailLines(path, 100, 64)
	require.NoError(t, err)
	require.NotEmpty(t, lines)
	for _, l := range lines {
		require.True(t, strings.HasPrefix(l, "line "), "got fragment %q", l)
	}
}

func TestTailLinesMissingFile(t *testing.T) {
	_, err := TailLines(filepath.Join(t.TempDir(), "nope.log"), 10, 0)
	require.Error(t, err)
}

func TestTailLinesEmptyPath(t *testing.T) {
	_, err := TailLines("", 10, 0)
	require.Error(t, err)
}
