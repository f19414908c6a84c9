// Package container drives a docker-compatible CLI for services that run as
// pre-existing containers rather than native processes. voicectl never
// creates containers; it starts, stops and log-follows ones somebody else
// built.
package container

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

const DefaultBin = "docker"

// Runtime shells out to a container CLI. Any binary with docker-compatible
// ps/start/stop/logs verbs works, podman included.
type Runtime struct {
	Bin string
}

func NewRuntime(bin string) *Runtime {
	if bin == "" {
		bin = DefaultBin
	}
	return &Runtime{Bin: bin}
}

// Exists reports whether a container with exactly this name is known to the
// runtime, running or not. The name filter matches substrings, so the output
// is compared line by line.
func (r *Runtime) Exists(ctx context.Context, name string) (bool, error) {
	out, err := exec.CommandContext(ctx, r.Bin, "ps", "-a", "--filter", "name="+name, "--format", "{{.Names}}").Output()
	if err != nil {
		return false, errors.Wrap(err, "list containers")
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// Start asks the runtime to start the named container.
func (r *Runtime) Start(ctx context.Context, name string) error {
	out, err := exec.CommandContext(ctx, r.Bin, "start", name).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "start container %s: %s", name, strings.TrimSpace(string(out)))
	}
	return nil
}

// Stop stops the named container. Shutdown paths call this for every
// configured container and ignore the error; stopping a container that never
// ran or is already gone is fine.
func (r *Runtime) Stop(ctx context.Context, name string) error {
	out, err := exec.CommandContext(ctx, r.Bin, "stop", name).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "stop container %s: %s", name, strings.TrimSpace(string(out)))
	}
	return nil
}

// FollowLogs spawns `logs -f` for the named container with both streams
// going to logFile. The follower runs in its own process group and stands in
// for the container as the managed process; the caller owns its lifetime.
func (r *Runtime) FollowLogs(name string, logFile *os.File) (*exec.Cmd, error) {
	cmd := exec.Command(r.Bin, "logs", "-f", name)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "follow container logs")
	}
	return cmd, nil
}
