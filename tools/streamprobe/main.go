// Command streamprobe drives a lifecycle coordinator against a live
// inference backend, feeding it images from a directory in place of a
// camera and printing the resulting announcements.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/SightKit/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "streamprobe",
		Short:         "SightKit stream probe - exercise the live video protocol from a terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Flags().Changed("verbose") {
				verbose, err := cmd.Flags().GetBool("verbose")
				if err == nil {
					logger.SetVerbose(verbose)
				}
			}
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringP("config", "c", "", "StreamConfig manifest (YAML)")
	root.PersistentFlags().String("server", "", "Inference server host (overrides SERVER_IP)")
	root.PersistentFlags().String("env-file", ".env", "Environment file loaded before configuration")

	root.AddCommand(newRunCmd(), newTranslateCmd(), newLanguagesCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
