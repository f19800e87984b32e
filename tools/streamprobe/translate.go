package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/SightKit/prefs"
	"github.com/AltairaLabs/SightKit/translate"
)

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [text...]",
		Short: "Translate text through the service's translation endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := bindFlags(cmd)
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			lang, err := prefs.Normalize(cfg.Spec.Language)
			if err != nil {
				return err
			}

			spec := cfg.Spec.Translate
			client := translate.NewClient(cfg.TranslateURL(),
				translate.WithRateLimit(spec.RequestsPerSecond, spec.Burst),
				translate.WithTimeout(spec.Timeout.Std()),
			)
			out, err := client.Translate(cmd.Context(), strings.Join(args, " "), lang)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().String("lang", "", "Target language (en, hi)")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the supported target languages",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, l := range prefs.SupportedLanguages() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", l.Code, l.Name)
			}
		},
	}
}
