package cmds

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/voicectl/pkg/health"
	"github.com/go-go-golems/voicectl/pkg/state"
)

func newStatusCmd() *cobra.Command {
	var tailLines int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show liveness and health of the recorded stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			run, err := state.Load(opts.Dir)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return errors.New("no recorded run; start the stack with voicectl")
				}
				return err
			}

			checker := health.NewChecker()

			type svcStatus struct {
				Name      string           `json:"name"`
				PID       int              `json:"pid"`
				Container string           `json:"container,omitempty"`
				Alive     bool             `json:"alive"`
				Healthy   bool             `json:"healthy"`
				Log       string           `json:"log"`
				Stats     *state.ProcStats `json:"stats,omitempty"`
				LogTail   []string         `json:"log_tail,omitempty"`
			}

			var services []svcStatus
			for _, rec := range run.Services {
				st := svcStatus{
					Name:      rec.Name,
					PID:       rec.PID,
					Container: rec.Container,
					Alive:     state.ProcessAlive(rec.PID),
					Healthy:   checker.Check(cmd.Context(), rec.HealthURL),
					Log:       rec.Log,
				}
				if st.Alive {
					if stats, err := state.ReadStats(rec.PID); err == nil {
						st.Stats = stats
					}
				}
				if !st.Healthy && tailLines > 0 {
					if lines, err := state.TailLines(rec.Log, tailLines, 0); err == nil {
						st.LogTail = lines
					}
				}
				services = append(services, st)
			}

			b, err := json.MarshalIndent(map[string]any{
				"run_id":     run.RunID,
				"started_at": run.StartedAt,
				"services":   services,
			}, "", "  ")
			if err != nil {
				return errors.Wrap(err, "marshal status")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	addTailLinesFlag(cmd.Flags(), &tailLines)
	return cmd
}
