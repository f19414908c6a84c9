// Package supervise owns the lifecycle of the voice stack: it launches
// script and container services into their own process groups, gates on
// their health endpoints, watches them until someone asks it to stop, and
// tears everything down exactly once.
package supervise

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/voicectl/pkg/config"
	"github.com/go-go-golems/voicectl/pkg/container"
	"github.com/go-go-golems/voicectl/pkg/health"
	"github.com/go-go-golems/voicectl/pkg/state"
)

// Phase tracks where the supervisor is in its lifecycle.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseReady      Phase = "ready"
	PhaseMonitoring Phase = "monitoring"
	PhaseFailed     Phase = "failed"
	PhaseStopping   Phase = "stopping"
	PhaseStopped    Phase = "stopped"
)

// Options tune the supervisor's timing. Zero values get the defaults the
// launcher has always used.
type Options struct {
	Dir             string        // where log files land
	StartupGrace    time.Duration // pause after spawning a launch script
	ShutdownTimeout time.Duration // SIGTERM grace before SIGKILL
	PollInterval    time.Duration // monitor tick
	CheckTimeout    time.Duration // per health probe
	CheckInterval   time.Duration // between readiness probes
}

// ManagedProcess is one supervised child: a launch-script process, or a
// log follower standing in for its container.
type ManagedProcess struct {
	Name      string
	PID       int
	PGID      int
	LogPath   string
	HealthURL string
	Container string // set when the process is a container's log follower
	StartedAt time.Time

	cmd  *exec.Cmd
	done chan struct{}
}

// track takes ownership of a started command and reaps it in the background
// so the child never lingers as a zombie.
func (p *ManagedProcess) track(cmd *exec.Cmd) {
	p.cmd = cmd
	p.PID = cmd.Process.Pid
	// Setpgid makes the child the leader of a fresh group keyed by its pid.
	p.PGID = cmd.Process.Pid
	p.StartedAt = time.Now()
	p.done = make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
}

// Exited reports whether the underlying process handle has been reaped. For
// container services this is the log follower, not the container itself.
func (p *ManagedProcess) Exited() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

type Supervisor struct {
	opts    Options
	cfg     *config.Stack
	checker *health.Checker
	runtime *container.Runtime
	procs   []*ManagedProcess
	phase   Phase
	stopped atomic.Bool
}

func New(cfg *config.Stack, opts Options) *Supervisor {
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 2 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	checker := health.NewChecker()
	if opts.CheckTimeout > 0 {
		checker.Timeout = opts.CheckTimeout
	}
	if opts.CheckInterval > 0 {
		checker.Interval = opts.CheckInterval
	}
	return &Supervisor{
		opts:    opts,
		cfg:     cfg,
		checker: checker,
		runtime: container.NewRuntime(cfg.Runtime),
		phase:   PhaseStarting,
	}
}

// Procs returns the managed processes in start order. Services whose launch
// failed outright have no entry.
func (s *Supervisor) Procs() []*ManagedProcess { return s.procs }

func (s *Supervisor) Phase() Phase { return s.phase }

// Start launches every configured service, then gates on each one's health
// endpoint. A service that fails to launch is logged and skipped; its missing
// endpoint fails the readiness gate. Any readiness failure tears down
// whatever did start before the error is returned.
func (s *Supervisor) Start(ctx context.Context) error {
	s.phase = PhaseStarting

	for _, svc := range s.cfg.Services {
		if proc := s.startService(ctx, svc); proc != nil {
			s.procs = append(s.procs, proc)
		}
	}

	ready := true
	for _, svc := range s.cfg.Services {
		if !s.checker.WaitReady(ctx, svc.Name, svc.HealthURL, svc.MaxWait) {
			ready = false
		}
	}
	if !ready {
		s.phase = PhaseFailed
		s.Shutdown(context.Background())
		return errors.New("one or more services never became healthy")
	}

	s.phase = PhaseReady
	log.Info().Int("services", len(s.procs)).Msg("all services are up")
	return nil
}

func (s *Supervisor) startService(ctx context.Context, svc config.Service) *ManagedProcess {
	if svc.Container != "" {
		return s.startContainer(ctx, svc)
	}
	return s.startScript(svc)
}

func (s *Supervisor) startScript(svc config.Service) *ManagedProcess {
	log.Info().Str("service", svc.Name).Str("script", svc.Script).Msg("starting service")

	if _, err := os.Stat(svc.Script); err != nil {
		log.Error().Str("service", svc.Name).Str("script", svc.Script).Msg("launch script not found")
		return nil
	}

	logPath := s.logPath(svc)
	logFile, err := openLogFile(logPath)
	if err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("cannot open log file")
		return nil
	}
	defer func() { _ = logFile.Close() }()

	// No CommandContext here: termination order belongs to Shutdown, not to
	// whichever context happens to get cancelled first.
	// #nosec G204 -- the script path comes from the stack config.
	cmd := exec.Command(svc.Script)
	cmd.Dir = filepath.Dir(svc.Script)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("launch script failed to start")
		return nil
	}

	proc := &ManagedProcess{Name: svc.Name, LogPath: logPath, HealthURL: svc.HealthURL}
	proc.track(cmd)

	// Some launch scripts fork and exit right away. Give the service a
	// moment and let the readiness gate decide whether the start worked.
	time.Sleep(s.opts.StartupGrace)

	log.Info().Str("service", svc.Name).Int("pid", proc.PID).Str("log", logPath).Msg("service started")
	return proc
}

func (s *Supervisor) startContainer(ctx context.Context, svc config.Service) *ManagedProcess {
	name := svc.Container
	log.Info().Str("service", svc.Name).Str("container", name).Msg("starting container service")

	exists, err := s.runtime.Exists(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("cannot query container runtime")
		return nil
	}
	if !exists {
		log.Error().Str("service", svc.Name).Str("container", name).Msg("container not found; create it before running voicectl")
		return nil
	}

	if err := s.runtime.Start(ctx, name); err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("container failed to start")
		return nil
	}

	logPath := s.logPath(svc)
	logFile, err := openLogFile(logPath)
	if err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("cannot open log file")
		return nil
	}
	defer func() { _ = logFile.Close() }()

	cmd, err := s.runtime.FollowLogs(name, logFile)
	if err != nil {
		log.Error().Err(err).Str("service", svc.Name).Msg("cannot follow container logs")
		return nil
	}

	proc := &ManagedProcess{Name: svc.Name, LogPath: logPath, HealthURL: svc.HealthURL, Container: name}
	proc.track(cmd)

	log.Info().Str("service", svc.Name).Str("container", name).Int("pid", proc.PID).Str("log", logPath).Msg("following container logs")
	return proc
}

// Monitor watches the children until ctx is cancelled or a service dies for
// real. A dead process handle whose endpoint still answers means the service
// daemonized (or only the log follower went away); those keep running. The
// returned error is nil for a user-initiated stop.
func (s *Supervisor) Monitor(ctx context.Context) error {
	s.phase = PhaseMonitoring
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stop requested")
			s.Shutdown(context.Background())
			return nil
		case <-ticker.C:
			for _, proc := range s.procs {
				if !proc.Exited() {
					continue
				}
				// A probe cut short by cancellation says nothing about
				// the service; stops belong to the Done case.
				if s.checker.Check(ctx, proc.HealthURL) || ctx.Err() != nil {
					continue
				}
				log.Error().Str("service", proc.Name).Msg("service exited and its endpoint is unreachable")
				s.phase = PhaseFailed
				s.Shutdown(context.Background())
				return errors.Errorf("service %s died", proc.Name)
			}
		}
	}
}

// Shutdown tears the stack down exactly once: containers get an explicit
// runtime stop first, then every child group is terminated with a grace
// period before the hard kill. Safe to call from any exit path.
func (s *Supervisor) Shutdown(ctx context.Context) {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.phase = PhaseStopping
	log.Info().Msg("stopping services")

	for _, svc := range s.cfg.Services {
		if svc.Container == "" {
			continue
		}
		if err := s.runtime.Stop(ctx, svc.Container); err != nil {
			log.Debug().Err(err).Str("container", svc.Container).Msg("container stop")
		} else {
			log.Info().Str("container", svc.Container).Msg("container stopped")
		}
	}

	for _, proc := range s.procs {
		s.terminate(proc)
	}

	s.phase = PhaseStopped
	log.Info().Msg("all services stopped")
}

func (s *Supervisor) terminate(proc *ManagedProcess) {
	if proc.Exited() {
		// Either it already died or it daemonized; nothing to signal.
		log.Debug().Str("service", proc.Name).Msg("process already gone")
		return
	}
	log.Info().Str("service", proc.Name).Int("pid", proc.PID).Msg("terminating")
	if err := TerminateGroup(proc.PID, proc.PGID, s.opts.ShutdownTimeout); err != nil {
		log.Warn().Err(err).Str("service", proc.Name).Msg("terminate")
	}
}

// TerminateGroup sends SIGTERM to a child's process group, waits up to grace
// for the leader to go away, then escalates to SIGKILL. Works on bare PIDs
// so sibling commands can use it on recorded state.
func TerminateGroup(pid, pgid int, grace time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if !state.ProcessAlive(pid) {
		return nil
	}
	if pgid <= 0 {
		if g, err := syscall.Getpgid(pid); err == nil {
			pgid = g
		}
	}
	target := pid
	if pgid > 0 {
		target = -pgid
	}

	_ = syscall.Kill(target, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !state.ProcessAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = syscall.Kill(target, syscall.SIGKILL)

	killDeadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(killDeadline) {
		if !state.ProcessAlive(pid) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.Errorf("pid %d survived SIGKILL", pid)
}

func (s *Supervisor) logPath(svc config.Service) string {
	if filepath.IsAbs(svc.Log) {
		return svc.Log
	}
	return filepath.Join(s.opts.Dir, svc.Log)
}

// openLogFile truncates: each run starts its logs over.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir log dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	return f, nil
}
