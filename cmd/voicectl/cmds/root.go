package cmds

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-go-golems/voicectl/pkg/config"
)

type rootOptions struct {
	Dir    string
	Config string
}

func AddRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("dir", "", "Stack directory for logs and run state (defaults to current directory)")
	root.PersistentFlags().String("config", "", "Path to config file (defaults to .voicectl.yaml under the stack directory)")
}

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newUpCmd())
	root.AddCommand(newDownCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newLogsCmd())
	return nil
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	dir, err := cmd.Root().PersistentFlags().GetString("dir")
	if err != nil {
		return rootOptions{}, err
	}
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return rootOptions{}, err
	}

	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	if cfgPath == "" {
		cfgPath = config.DefaultPath(dir)
	} else if !filepath.IsAbs(cfgPath) {
		cfgPath = filepath.Join(dir, cfgPath)
	}

	return rootOptions{Dir: dir, Config: cfgPath}, nil
}

// resolvePath anchors a relative path at the stack directory.
func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// status and logs share the tail flag.
func addTailLinesFlag(fs *pflag.FlagSet, p *int) {
	fs.IntVar(p, "tail-lines", 25, "How many log lines to show per service")
}
