package config

import "time"

// Default values.
const (
	DefaultPort           = 8000
	DefaultStreamPath     = "/ws/video"
	DefaultTranslatePath  = "/translate"
	DefaultLanguage       = "en"
	DefaultQuality        = 0.5
	DefaultFrameInterval  = 200 * time.Millisecond
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxReconnects  = 5
	DefaultDialTimeout    = 10 * time.Second
	DefaultScreenWidth    = 400
	DefaultWarnDistanceCM = 50
	DefaultMinConfidence  = 0.5
	DefaultRepeatWindow   = 3 * time.Second
	DefaultTranslateRPS   = 5
	DefaultTranslateBurst = 2
	DefaultTranslateTO    = 5 * time.Second
	DefaultPrefsPrefix    = "sightkit"
	DefaultServiceName    = "sightkit"
)

// Default returns a manifest with every default filled in except the server
// host, which has no sensible default.
func Default() *StreamConfig {
	suppress := true
	maxReconnects := DefaultMaxReconnects
	return &StreamConfig{
		APIVersion: APIVersion,
		Kind:       Kind,
		Spec: StreamConfigSpec{
			Server: ServerSpec{
				Port:          DefaultPort,
				StreamPath:    DefaultStreamPath,
				TranslatePath: DefaultTranslatePath,
			},
			Language: DefaultLanguage,
			Capture: CaptureSpec{
				Quality:         DefaultQuality,
				SuppressShutter: &suppress,
				FrameInterval:   Duration(DefaultFrameInterval),
			},
			Session: SessionSpec{
				ReconnectDelay:  Duration(DefaultReconnectDelay),
				MaxReconnects:   &maxReconnects,
				PayloadEncoding: EncodingBase64,
				DialTimeout:     Duration(DefaultDialTimeout),
			},
			Announce: AnnounceSpec{
				ScreenWidth:        DefaultScreenWidth,
				WarnDistanceCM:     DefaultWarnDistanceCM,
				MinDepthConfidence: DefaultMinConfidence,
				RepeatWindow:       Duration(DefaultRepeatWindow),
			},
			Translate: TranslateSpec{
				RequestsPerSecond: DefaultTranslateRPS,
				Burst:             DefaultTranslateBurst,
				Timeout:           Duration(DefaultTranslateTO),
			},
			Prefs: PrefsSpec{
				Backend: PrefsMemory,
				Prefix:  DefaultPrefsPrefix,
			},
			Logging: LoggingSpec{
				Level:  "info",
				Format: "text",
			},
			Telemetry: TelemetrySpec{
				ServiceName: DefaultServiceName,
			},
		},
	}
}
