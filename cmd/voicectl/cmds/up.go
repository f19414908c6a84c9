package cmds

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/voicectl/pkg/config"
	"github.com/go-go-golems/voicectl/pkg/envfile"
	"github.com/go-go-golems/voicectl/pkg/health"
	"github.com/go-go-golems/voicectl/pkg/llm"
	"github.com/go-go-golems/voicectl/pkg/state"
	"github.com/go-go-golems/voicectl/pkg/supervise"
)

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Start the voice stack and supervise it until interrupted",
		Args:  cobra.NoArgs,
		RunE:  RunUp,
	}
}

// RunUp is the whole show: load config and env, look for the model server,
// launch every service, gate on health, warm the model, then watch the stack
// until Ctrl-C or a real failure. The root command runs this when no
// subcommand is given.
func RunUp(cmd *cobra.Command, args []string) error {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOptional(opts.Config)
	if err != nil {
		return err
	}

	if err := guardPreviousRun(opts.Dir); err != nil {
		return err
	}

	if err := envfile.Load(resolvePath(opts.Dir, cfg.EnvFile)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "starting local AI services")

	checker := health.NewChecker()
	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.KeepAlive)
	llmUp := checker.Check(ctx, cfg.LLM.BaseURL)
	if llmUp {
		log.Info().Str("url", cfg.LLM.BaseURL).Msg("model server is running")
	} else {
		log.Warn().Str("url", cfg.LLM.BaseURL).Msg("model server not detected; start it with: ollama serve")
	}

	sup := supervise.New(cfg, supervise.Options{Dir: opts.Dir})
	if err := sup.Start(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("interrupted during startup")
			return nil
		}
		printLogTails(cmd.ErrOrStderr(), sup)
		return err
	}

	run := recordRun(cfg, sup)
	if err := state.Save(opts.Dir, run); err != nil {
		log.Warn().Err(err).Msg("cannot write state file; status and down will not see this run")
	}

	if llmUp {
		if err := llmClient.Warmup(ctx); err != nil {
			log.Warn().Err(err).Msg("model warm-up failed")
		}
	}

	printSummary(out, cfg, sup)

	err = sup.Monitor(ctx)
	if rmErr := state.Remove(opts.Dir); rmErr != nil {
		log.Warn().Err(rmErr).Msg("cannot remove state file")
	}
	if err != nil {
		printLogTails(cmd.ErrOrStderr(), sup)
	}
	return err
}

// guardPreviousRun refuses to start while a process recorded by an earlier
// run is still alive. A state file that cannot be read gets a warning, not a
// veto.
func guardPreviousRun(dir string) error {
	run, err := state.Load(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", state.Path(dir)).Msg("ignoring unreadable state file")
		}
		return nil
	}
	for _, rec := range run.Services {
		if state.ProcessAlive(rec.PID) {
			return errors.Errorf("service %s (pid %d) is still running; run voicectl down first", rec.Name, rec.PID)
		}
	}
	log.Debug().Str("run_id", run.RunID).Msg("clearing stale state from a previous run")
	return nil
}

func recordRun(cfg *config.Stack, sup *supervise.Supervisor) *state.Run {
	run := state.NewRun(cfg.Runtime)
	for _, p := range sup.Procs() {
		run.Services = append(run.Services, state.ServiceRecord{
			Name:      p.Name,
			PID:       p.PID,
			PGID:      p.PGID,
			Container: p.Container,
			Log:       p.LogPath,
			HealthURL: p.HealthURL,
			StartedAt: p.StartedAt,
		})
	}
	return run
}

func printSummary(w io.Writer, cfg *config.Stack, sup *supervise.Supervisor) {
	_, _ = fmt.Fprintln(w, "all services are up")
	for _, p := range sup.Procs() {
		_, _ = fmt.Fprintf(w, "  %-8s %s  (log: %s)\n", p.Name, p.HealthURL, p.LogPath)
	}
	_, _ = fmt.Fprintf(w, "  %-8s %s\n", "llm", cfg.LLM.BaseURL)
	_, _ = fmt.Fprintln(w, "press Ctrl+C to stop all services")
}

// printLogTails surfaces the last log lines of every managed service, which
// is usually where the reason for a failed start or a mid-run death lives.
func printLogTails(w io.Writer, sup *supervise.Supervisor) {
	for _, p := range sup.Procs() {
		lines, err := state.TailLines(p.LogPath, 15, 0)
		if err != nil || len(lines) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "--- %s (%s) ---\n", p.Name, p.LogPath)
		for _, line := range lines {
			_, _ = fmt.Fprintln(w, line)
		}
	}
}
