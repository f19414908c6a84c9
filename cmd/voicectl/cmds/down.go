package cmds

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/voicectl/pkg/container"
	"github.com/go-go-golems/voicectl/pkg/state"
	"github.com/go-go-golems/voicectl/pkg/supervise"
)

func newDownCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop a stack left behind by a previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			run, err := state.Load(opts.Dir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return errors.New("no recorded run; nothing to stop")
				}
				return err
			}

			rt := container.NewRuntime(run.Runtime)
			for _, rec := range run.Services {
				if rec.Container == "" {
					continue
				}
				if err := rt.Stop(cmd.Context(), rec.Container); err != nil {
					log.Debug().Err(err).Str("container", rec.Container).Msg("container stop")
				} else {
					log.Info().Str("container", rec.Container).Msg("container stopped")
				}
			}

			for _, rec := range run.Services {
				if !state.ProcessAlive(rec.PID) {
					continue
				}
				log.Info().Str("service", rec.Name).Int("pid", rec.PID).Msg("terminating")
				if err := supervise.TerminateGroup(rec.PID, rec.PGID, timeout); err != nil {
					log.Warn().Err(err).Str("service", rec.Name).Msg("terminate")
				}
			}

			if err := state.Remove(opts.Dir); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "stopped")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "SIGTERM grace before escalating to SIGKILL")
	return cmd
}
