package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream images to the inference service and print announcements",
		Long: `Run opens a stream session the way the app does when the stream screen
is focused, feeding frames from an image directory instead of a camera.
Announcements are printed one per line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := bindFlags(cmd)
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if d := v.GetDuration("duration"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			p, err := newProbe(ctx, cfg, v.GetString("images"), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer p.close()
			return p.run(ctx)
		},
	}

	cmd.Flags().String("images", "", "Directory of JPEG/PNG frames to stream")
	cmd.Flags().String("lang", "", "Target language (en, hi)")
	cmd.Flags().String("metrics-addr", "", "Serve /metrics and /health on this address")
	cmd.Flags().Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	_ = cmd.MarkFlagRequired("images")
	return cmd
}
