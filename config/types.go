// Package config loads the streaming client configuration from a K8s-style
// YAML manifest, environment variables and an optional .env file.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// APIVersion and Kind identify a StreamConfig manifest.
const (
	APIVersion = "sightkit.altairalabs.ai/v1alpha1"
	Kind       = "StreamConfig"
)

// Payload encodings for frame transmission.
const (
	EncodingBase64 = "base64"
	EncodingBinary = "binary"
)

// Preference store backends.
const (
	PrefsMemory = "memory"
	PrefsRedis  = "redis"
)

// StreamConfig is the top-level manifest.
type StreamConfig struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ObjectMeta       `yaml:"metadata,omitempty"`
	Spec       StreamConfigSpec `yaml:"spec"`
}

// ObjectMeta holds manifest metadata.
type ObjectMeta struct {
	Name   string            `yaml:"name,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// StreamConfigSpec is the configuration proper.
type StreamConfigSpec struct {
	Server    ServerSpec    `yaml:"server"`
	Language  string        `yaml:"language,omitempty"`
	Capture   CaptureSpec   `yaml:"capture,omitempty"`
	Session   SessionSpec   `yaml:"session,omitempty"`
	Announce  AnnounceSpec  `yaml:"announce,omitempty"`
	Translate TranslateSpec `yaml:"translate,omitempty"`
	Prefs     PrefsSpec     `yaml:"prefs,omitempty"`
	Logging   LoggingSpec   `yaml:"logging,omitempty"`
	Telemetry TelemetrySpec `yaml:"telemetry,omitempty"`
	Metrics   MetricsSpec   `yaml:"metrics,omitempty"`
}

// ServerSpec locates the inference service.
type ServerSpec struct {
	// Host is the backend address; SERVER_IP overrides it.
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	StreamPath    string `yaml:"streamPath,omitempty"`
	TranslatePath string `yaml:"translatePath,omitempty"`
}

// CaptureSpec configures the frame source.
type CaptureSpec struct {
	// Quality is the JPEG quality in (0, 1].
	Quality         float64  `yaml:"quality,omitempty"`
	SuppressShutter *bool    `yaml:"suppressShutter,omitempty"`
	MaxWidth        int      `yaml:"maxWidth,omitempty"`
	MaxHeight       int      `yaml:"maxHeight,omitempty"`
	FrameInterval   Duration `yaml:"frameInterval,omitempty"`
}

// SessionSpec configures the stream session.
type SessionSpec struct {
	ReconnectDelay  Duration `yaml:"reconnectDelay,omitempty"`
	MaxReconnects   *int     `yaml:"maxReconnects,omitempty"`
	PayloadEncoding string   `yaml:"payloadEncoding,omitempty"`
	LanguageInQuery bool     `yaml:"languageInQuery,omitempty"`
	DialTimeout     Duration `yaml:"dialTimeout,omitempty"`
}

// AnnounceSpec configures spoken announcements.
type AnnounceSpec struct {
	ScreenWidth        float64  `yaml:"screenWidth,omitempty"`
	WarnDistanceCM     float64  `yaml:"warnDistanceCm,omitempty"`
	MinDepthConfidence float64  `yaml:"minDepthConfidence,omitempty"`
	RepeatWindow       Duration `yaml:"repeatWindow,omitempty"`
}

// TranslateSpec configures the translation client.
type TranslateSpec struct {
	RequestsPerSecond float64  `yaml:"requestsPerSecond,omitempty"`
	Burst             int      `yaml:"burst,omitempty"`
	Timeout           Duration `yaml:"timeout,omitempty"`
}

// PrefsSpec selects the preference store.
type PrefsSpec struct {
	Backend   string `yaml:"backend,omitempty"`
	RedisAddr string `yaml:"redisAddr,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// LoggingSpec configures the global logger.
type LoggingSpec struct {
	Level        string            `yaml:"level,omitempty"`
	Format       string            `yaml:"format,omitempty"`
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
}

// TelemetrySpec configures OTLP tracing. Tracing is off when Endpoint is empty.
type TelemetrySpec struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// MetricsSpec configures the Prometheus exporter. Off when Addr is empty.
type MetricsSpec struct {
	Addr string `yaml:"addr,omitempty"`
}

// Duration is a time.Duration that reads from YAML strings like "200ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
