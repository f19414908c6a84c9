package state

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultTailLines = 25
	defaultTailBytes = 2 << 20
)

// TailLines returns up to n trailing lines of the log at path, reading at
// most maxBytes from the end of the file. A partial first line caused by the
// byte cutoff is dropped.
func TailLines(path string, n int, maxBytes int64) ([]string, error) {
	if path == "" {
		return nil, errors.New("missing path")
	}
	if n <= 0 {
		n = defaultTailLines
	}
	if maxBytes <= 0 {
		maxBytes = defaultTailBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open log")
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat log")
	}
	start := info.Size() - maxBytes
	if start < 0 {
		start = 0
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seek log")
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "read log")
	}

	// Walk the newlines backward so only the lines that get returned are
	// split out.
	text := strings.TrimSuffix(string(b), "\n")
	var lines []string
	for len(lines) < n && text != "" {
		i := strings.LastIndexByte(text, '\n')
		if i < 0 {
			// Head of the chunk. When the byte cap cut into the file this
			// may be half a line, so it only counts from a full read.
			if start == 0 {
				lines = append(lines, text)
			}
			break
		}
		lines = append(lines, text[i+1:])
		text = text[:i]
	}
	for l, r := 0, len(lines)-1; l < r; l, r = l+1, r-1 {
		lines[l], lines[r] = lines[r], lines[l]
	}
	return lines, nil
}
