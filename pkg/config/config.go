package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = ".voicectl.yaml"

// Defaults for the stock stack, overridable through the config file.
const (
	DefaultMaxWait   = 30
	DefaultRuntime   = "docker"
	DefaultEnvFile   = ".env"
	defaultSTTScript = "Desktop/faster-whisper-stt/launch_stt.sh"
	defaultTTSName   = "fatterbox-tts"
)

// Service describes one supervised service. Exactly one of Script and
// Container must be set: script services are spawned from a launch script,
// container services are pre-existing containers that get started and
// log-followed.
type Service struct {
	Name      string `yaml:"name"`
	Script    string `yaml:"script,omitempty"`
	Container string `yaml:"container,omitempty"`
	Log       string `yaml:"log,omitempty"`
	HealthURL string `yaml:"health_url"`
	MaxWait   int    `yaml:"max_wait,omitempty"` // readiness probes, one per second
}

// LLM points at the locally running model server. voicectl never starts it;
// it only checks for it and optionally warms a model.
type LLM struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	KeepAlive string `yaml:"keep_alive,omitempty"`
}

// Stack is the full supervisor configuration.
type Stack struct {
	EnvFile  string    `yaml:"env_file,omitempty"`
	Runtime  string    `yaml:"runtime,omitempty"` // container runtime binary
	Services []Service `yaml:"services,omitempty"`
	LLM      LLM       `yaml:"llm,omitempty"`
}

func DefaultPath(dir string) string {
	return filepath.Join(dir, DefaultConfigFilename)
}

// Default is the stock voice stack: faster-whisper STT from a launch script
// under the user's home directory, the fatterbox TTS container, and an
// Ollama server on its usual port.
func Default() *Stack {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Stack{
		EnvFile: DefaultEnvFile,
		Runtime: DefaultRuntime,
		Services: []Service{
			{
				Name:      "stt",
				Script:    filepath.Join(home, filepath.FromSlash(defaultSTTScript)),
				Log:       "stt_service.log",
				HealthURL: "http://localhost:8000/docs",
				MaxWait:   DefaultMaxWait,
			},
			{
				Name:      "tts",
				Container: defaultTTSName,
				Log:       "tts_service.log",
				HealthURL: "http://localhost:8005/docs",
				MaxWait:   DefaultMaxWait,
			},
		},
		LLM: LLM{
			BaseURL: "http://localhost:11434",
		},
	}
}

func LoadFromFile(path string) (*Stack, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var cfg Stack
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOptional returns the stock stack when no config file exists at path.
func LoadOptional(path string) (*Stack, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrap(err, "stat config")
	}
	return LoadFromFile(path)
}

func (s *Stack) applyDefaults() {
	if s.EnvFile == "" {
		s.EnvFile = DefaultEnvFile
	}
	if s.Runtime == "" {
		s.Runtime = DefaultRuntime
	}
	if len(s.Services) == 0 {
		s.Services = Default().Services
	}
	for i := range s.Services {
		svc := &s.Services[i]
		if svc.Log == "" && svc.Name != "" {
			svc.Log = svc.Name + "_service.log"
		}
		if svc.MaxWait == 0 {
			svc.MaxWait = DefaultMaxWait
		}
		svc.Script = resolveScript(svc.Script)
	}
	if s.LLM.BaseURL == "" {
		s.LLM.BaseURL = Default().LLM.BaseURL
	}
}

// Validate rejects configs the supervisor could not act on. It does not check
// that scripts or containers exist; those are per-service startup failures,
// not config errors.
func (s *Stack) Validate() error {
	seen := map[string]struct{}{}
	for _, svc := range s.Services {
		if svc.Name == "" {
			return errors.New("service missing name")
		}
		if _, ok := seen[svc.Name]; ok {
			return errors.Errorf("duplicate service name %q", svc.Name)
		}
		seen[svc.Name] = struct{}{}

		if svc.Script == "" && svc.Container == "" {
			return errors.Errorf("service %q needs a script or a container", svc.Name)
		}
		if svc.Script != "" && svc.Container != "" {
			return errors.Errorf("service %q has both a script and a container", svc.Name)
		}
		if svc.HealthURL == "" {
			return errors.Errorf("service %q missing health_url", svc.Name)
		}
		if svc.MaxWait < 0 {
			return errors.Errorf("service %q has negative max_wait", svc.Name)
		}
	}
	return nil
}

// Service looks a service up by name.
func (s *Stack) Service(name string) (Service, bool) {
	for _, svc := range s.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// resolveScript anchors non-absolute script paths at the user's home
// directory; a leading ~/ is the explicit spelling of the same thing.
func resolveScript(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~/"))
}
