package cmds

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/voicectl/pkg/config"
	"github.com/go-go-golems/voicectl/pkg/state"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var tailLines int
	var since string

	cmd := &cobra.Command{
		Use:   "logs [service...]",
		Short: "Show service logs, optionally following them",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.LoadOptional(opts.Config)
			if err != nil {
				return err
			}

			targets, err := logTargets(opts, cfg, args)
			if err != nil {
				return err
			}

			var cutoff time.Time
			if since != "" {
				cutoff, err = parseSince(since)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			prefixed := len(targets) > 1

			for _, tgt := range targets {
				lines, err := state.TailLines(tgt.log, tailLines, 0)
				if err != nil {
					log.Warn().Err(err).Str("service", tgt.name).Msg("cannot read log")
					continue
				}
				for _, line := range lines {
					if lineBefore(line, cutoff) {
						continue
					}
					writeLogLine(out, prefixed, tgt.name, line)
				}
			}

			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var mu sync.Mutex
			eg, egCtx := errgroup.WithContext(ctx)
			for _, tgt := range targets {
				eg.Go(func() error {
					err := state.Follow(egCtx, tgt.log, func(line string) {
						if lineBefore(line, cutoff) {
							return
						}
						mu.Lock()
						writeLogLine(out, prefixed, tgt.name, line)
						mu.Unlock()
					})
					if stderrors.Is(err, context.Canceled) {
						return nil
					}
					return err
				})
			}
			return eg.Wait()
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines until interrupted")
	cmd.Flags().StringVar(&since, "since", "", "Drop lines older than this (absolute like '2026-01-02 15:04' or relative like '15m'); lines with no recognizable timestamp are kept")
	addTailLinesFlag(cmd.Flags(), &tailLines)
	return cmd
}

type logTarget struct {
	name string
	log  string
}

// logTargets resolves which logs to read. The config names the services; a
// recorded run overrides its log paths, so logs keeps working on stale runs
// whose config has since changed.
func logTargets(opts rootOptions, cfg *config.Stack, names []string) ([]logTarget, error) {
	byName := map[string]string{}
	var order []string
	for _, svc := range cfg.Services {
		byName[svc.Name] = resolvePath(opts.Dir, svc.Log)
		order = append(order, svc.Name)
	}
	if run, err := state.Load(opts.Dir); err == nil {
		for _, rec := range run.Services {
			if _, ok := byName[rec.Name]; !ok {
				order = append(order, rec.Name)
			}
			byName[rec.Name] = resolvePath(opts.Dir, rec.Log)
		}
	}

	if len(names) == 0 {
		names = order
	}
	targets := make([]logTarget, 0, len(names))
	for _, n := range names {
		path, ok := byName[n]
		if !ok {
			return nil, errors.Errorf("unknown service %q", n)
		}
		targets = append(targets, logTarget{name: n, log: path})
	}
	return targets, nil
}

// parseSince takes either a relative duration or anything dateparse can make
// sense of.
func parseSince(s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	ts, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "cannot parse --since %q", s)
	}
	return ts, nil
}

// lineBefore is a best-effort timestamp filter: a line only gets dropped
// when it visibly starts with a timestamp older than the cutoff.
func lineBefore(line string, cutoff time.Time) bool {
	if cutoff.IsZero() {
		return false
	}
	ts, ok := leadingTimestamp(line)
	if !ok {
		return false
	}
	return ts.Before(cutoff)
}

func leadingTimestamp(line string) (time.Time, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return time.Time{}, false
	}
	limit := len(fields)
	if limit > 3 {
		limit = 3
	}
	for n := limit; n >= 1; n-- {
		candidate := strings.Trim(strings.Join(fields[:n], " "), "[]")
		if ts, err := dateparse.ParseAny(candidate); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func writeLogLine(w io.Writer, prefixed bool, name, line string) {
	if prefixed {
		_, _ = fmt.Fprintf(w, "%s | %s\n", name, line)
	} else {
		_, _ = fmt.Fprintln(w, line)
	}
}
