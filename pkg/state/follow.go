package state

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Follow streams lines appended to the log at path, starting from the
// current end of file, until ctx is cancelled. Whole lines only; a partial
// write is held back until its newline arrives. When the file shrinks (a new
// run truncates the logs) the follower starts over from the top.
func Follow(ctx context.Context, path string, emit func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open log")
	}
	defer func() { _ = f.Close() }()

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "seek log")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return errors.Wrap(err, "watch log")
	}

	var pending []byte
	buf := make([]byte, 32*1024)

	drain := func() error {
		info, err := f.Stat()
		if err != nil {
			return errors.Wrap(err, "stat log")
		}
		if info.Size() < offset {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return errors.Wrap(err, "rewind log")
			}
			offset = 0
			pending = pending[:0]
		}
		for {
			n, readErr := f.Read(buf)
			if n > 0 {
				offset += int64(n)
				pending = append(pending, buf[:n]...)
				for {
					i := bytes.IndexByte(pending, '\n')
					if i < 0 {
						break
					}
					emit(string(pending[:i]))
					pending = pending[i+1:]
				}
			}
			if readErr != nil {
				if readErr == io.EOF {
					return nil
				}
				return errors.Wrap(readErr, "read log")
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) {
				if err := drain(); err != nil {
					return err
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return errors.New("log file went away")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watch log")
		}
	}
}
