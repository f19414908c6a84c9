package main

import (
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/voicectl/cmd/voicectl/cmds"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "voicectl",
	Short:   "voicectl launches and supervises the local AI voice stack (STT, TTS, LLM)",
	Version: version,
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitLoggerFromCobra(cmd)
	},
	// Bare voicectl does the same thing as voicectl up.
	RunE: cmds.RunUp,
}

func main() {
	cobra.CheckErr(logging.AddLoggingLayerToRootCommand(rootCmd, "voicectl"))
	cmds.AddRootFlags(rootCmd)
	cobra.CheckErr(cmds.AddCommands(rootCmd))
	cobra.CheckErr(rootCmd.Execute())
}
