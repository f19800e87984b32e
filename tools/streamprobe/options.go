package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AltairaLabs/SightKit/announce"
	"github.com/AltairaLabs/SightKit/capture"
	"github.com/AltairaLabs/SightKit/config"
	"github.com/AltairaLabs/SightKit/logger"
	"github.com/AltairaLabs/SightKit/streaming"
)

// envPrefix namespaces flag overrides, e.g. STREAMPROBE_SERVER.
const envPrefix = "STREAMPROBE"

// bindFlags ties the command's flags to a fresh viper instance so every
// flag can also be set from the environment.
func bindFlags(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())
	return v
}

// loadConfig builds the effective configuration: defaults, manifest,
// process environment, then flags.
func loadConfig(v *viper.Viper) (*config.StreamConfig, error) {
	if err := config.LoadEnv(v.GetString("env-file")); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if path := v.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if cfg, err = config.Parse(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if s := v.GetString("server"); s != "" {
		cfg.Spec.Server.Host = s
	}
	if l := v.GetString("lang"); l != "" {
		cfg.Spec.Language = l
	}
	if a := v.GetString("metrics-addr"); a != "" {
		cfg.Spec.Metrics.Addr = a
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Configure(cfg.LoggingConfig())
	return cfg, nil
}

func captureOptions(cfg *config.StreamConfig) capture.Options {
	return capture.Options{
		Quality:         cfg.Spec.Capture.Quality,
		SuppressShutter: cfg.SuppressShutter(),
		MaxWidth:        cfg.Spec.Capture.MaxWidth,
		MaxHeight:       cfg.Spec.Capture.MaxHeight,
	}
}

func announceOptions(cfg *config.StreamConfig) announce.Options {
	a := cfg.Spec.Announce
	return announce.Options{
		ScreenWidth:        a.ScreenWidth,
		WarnDistanceCM:     a.WarnDistanceCM,
		MinDepthConfidence: a.MinDepthConfidence,
		RepeatWindow:       a.RepeatWindow.Std(),
	}
}

// sessionTemplate maps the configuration onto the session settings shared
// by every session the coordinator opens.
func sessionTemplate(cfg *config.StreamConfig, src streaming.FrameSource) streaming.SessionConfig {
	s := cfg.Spec.Session
	tmpl := streaming.SessionConfig{
		URL:             cfg.StreamURL(),
		Language:        cfg.Spec.Language,
		LanguageInQuery: s.LanguageInQuery,
		Source:          src,
		Dialer: &streaming.WebsocketDialer{Config: streaming.ConnConfig{
			DialTimeout: s.DialTimeout.Std(),
			Logger:      logger.For("streaming.conn"),
		}},
		FrameInterval:  cfg.Spec.Capture.FrameInterval.Std(),
		ReconnectDelay: s.ReconnectDelay.Std(),
		Encoding:       streaming.Encoding(s.PayloadEncoding),
		Logger:         logger.For("streaming"),
	}
	if n := cfg.MaxReconnects(); n == 0 {
		tmpl.DisableReconnect = true
	} else {
		tmpl.MaxReconnects = n
	}
	return tmpl
}
