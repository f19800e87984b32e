package logger

import (
	"log/slog"
	"sort"
)

// Log format constants.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec defines the options accepted by Configure. It mirrors the
// logging section of config.StreamConfigSpec to avoid an import cycle.
type LoggingConfigSpec struct {
	Level        string
	Format       string // "json" or "text"
	CommonFields map[string]string
}

// Configure applies a LoggingConfigSpec to the global logger.
func Configure(cfg *LoggingConfigSpec) {
	if cfg == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	if cfg.Level != "" {
		currentLevel.Set(ParseLevel(cfg.Level))
	}
	useJSON = cfg.Format == FormatJSON

	keys := make([]string, 0, len(cfg.CommonFields))
	for k := range cfg.CommonFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slog.String(k, cfg.CommonFields[k]))
	}
	commonFields = fields

	rebuild()
	slog.SetDefault(DefaultLogger)
}
