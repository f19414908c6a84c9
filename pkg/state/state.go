// Package state persists what a supervisor run started so that sibling
// commands (status, logs, down) can find the processes later, and knows how
// to tell whether those processes are still around.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	StateDirName  = ".voicectl"
	StateFilename = "state.json"
)

// Run records one supervisor run.
type Run struct {
	RunID     string          `json:"run_id"`
	StartedAt time.Time       `json:"started_at"`
	Runtime   string          `json:"runtime,omitempty"` // container runtime binary
	Services  []ServiceRecord `json:"services"`
}

// ServiceRecord is the durable view of one managed process. For container
// services the PID belongs to the log follower, not the container.
type ServiceRecord struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid"`
	PGID      int       `json:"pgid,omitempty"`
	Container string    `json:"container,omitempty"`
	Log       string    `json:"log"`
	HealthURL string    `json:"health_url"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

func NewRun(runtime string) *Run {
	return &Run{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Runtime:   runtime,
	}
}

func Path(dir string) string {
	return filepath.Join(dir, StateDirName, StateFilename)
}

func Load(dir string) (*Run, error) {
	b, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, errors.Wrap(err, "read state")
	}
	var r Run
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Wrap(err, "parse state json")
	}
	return &r, nil
}

// Save writes the run record atomically so a crash mid-write never leaves a
// torn state file behind.
func Save(dir string, r *Run) error {
	if r == nil {
		return errors.New("nil run")
	}
	path := Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir state dir")
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "write state")
	}
	return nil
}

func Remove(dir string) error {
	if err := os.Remove(Path(dir)); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "remove state")
	}
	return nil
}
