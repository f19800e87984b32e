package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/logger"
)

const component = "config"

// Environment variables that override the manifest.
const (
	EnvServerIP = "SERVER_IP"
	EnvPort     = "SIGHTKIT_PORT"
	EnvLanguage = "SIGHTKIT_LANGUAGE"
	EnvLogLevel = "LOG_LEVEL"
)

// LoadEnv loads .env style files into the process environment. Missing files
// are skipped; existing variables are never overwritten.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return skerrors.New(skerrors.KindConfig, component, "LoadEnv", err)
		}
	}
	return nil
}

// Load reads, schema-validates and decodes a manifest, then applies the
// process environment and validates the result. An empty path yields the
// defaults plus environment.
func Load(path string) (*StreamConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, skerrors.New(skerrors.KindConfig, component, "Load", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes manifest bytes over the defaults without consulting the
// environment.
func Parse(data []byte) (*StreamConfig, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *StreamConfig) decode(data []byte) error {
	if err := ValidateManifest(data); err != nil {
		return skerrors.New(skerrors.KindConfig, component, "Validate", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return skerrors.New(skerrors.KindConfig, component, "Decode", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment using lookup.
func (c *StreamConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvServerIP); ok && v != "" {
		c.Spec.Server.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return skerrors.New(skerrors.KindConfig, component, "ApplyEnv",
				fmt.Errorf("%s: %w", EnvPort, err))
		}
		c.Spec.Server.Port = port
	}
	if v, ok := lookup(EnvLanguage); ok && v != "" {
		c.Spec.Language = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Spec.Logging.Level = v
	}
	return nil
}

// Validate checks the values the schema cannot express.
func (c *StreamConfig) Validate() error {
	s := c.Spec
	var problem string
	switch {
	case s.Server.Host == "":
		problem = "server host is required (set " + EnvServerIP + ")"
	case s.Server.Port < 1 || s.Server.Port > 65535:
		problem = fmt.Sprintf("server port %d out of range", s.Server.Port)
	case s.Language == "":
		problem = "language is required"
	case s.Capture.Quality <= 0 || s.Capture.Quality > 1:
		problem = fmt.Sprintf("capture quality %v must be in (0, 1]", s.Capture.Quality)
	case s.Capture.FrameInterval <= 0:
		problem = "capture frame interval must be positive"
	case s.Session.ReconnectDelay <= 0:
		problem = "session reconnect delay must be positive"
	case s.Session.MaxReconnects != nil && *s.Session.MaxReconnects < 0:
		problem = "session max reconnects must not be negative"
	case s.Session.PayloadEncoding != EncodingBase64 && s.Session.PayloadEncoding != EncodingBinary:
		problem = fmt.Sprintf("unknown payload encoding %q", s.Session.PayloadEncoding)
	case s.Prefs.Backend == PrefsRedis && s.Prefs.RedisAddr == "":
		problem = "prefs redisAddr is required for the redis backend"
	}
	if problem != "" {
		return skerrors.New(skerrors.KindConfig, component, "Validate", errors.New(problem))
	}
	return nil
}

// StreamURL returns the websocket endpoint, without the language query.
func (c *StreamConfig) StreamURL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(c.Spec.Server.Host, strconv.Itoa(c.Spec.Server.Port)),
		Path:   c.Spec.Server.StreamPath,
	}
	return u.String()
}

// TranslateURL returns the translation endpoint.
func (c *StreamConfig) TranslateURL() string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(c.Spec.Server.Host, strconv.Itoa(c.Spec.Server.Port)),
		Path:   c.Spec.Server.TranslatePath,
	}
	return u.String()
}

// MaxReconnects returns the reconnect cap, defaulting when unset.
func (c *StreamConfig) MaxReconnects() int {
	if c.Spec.Session.MaxReconnects == nil {
		return DefaultMaxReconnects
	}
	return *c.Spec.Session.MaxReconnects
}

// SuppressShutter reports whether shutter feedback is muted, defaulting to true.
func (c *StreamConfig) SuppressShutter() bool {
	if c.Spec.Capture.SuppressShutter == nil {
		return true
	}
	return *c.Spec.Capture.SuppressShutter
}

// LoggingConfig converts the logging section for logger.Configure.
func (c *StreamConfig) LoggingConfig() *logger.LoggingConfigSpec {
	return &logger.LoggingConfigSpec{
		Level:        c.Spec.Logging.Level,
		Format:       c.Spec.Logging.Format,
		CommonFields: c.Spec.Logging.CommonFields,
	}
}
