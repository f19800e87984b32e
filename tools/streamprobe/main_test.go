package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/SightKit/announce"
	"github.com/AltairaLabs/SightKit/config"
	"github.com/AltairaLabs/SightKit/detection"
	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/events"
	"github.com/AltairaLabs/SightKit/logger"
	"github.com/AltairaLabs/SightKit/streaming"
)

// isolateEnv clears the variables the loader reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for _, k := range []string{config.EnvServerIP, config.EnvPort, config.EnvLanguage, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
	return filepath.Join(t.TempDir(), "missing.env")
}

// pointEnvAt makes the loader target srv.
func pointEnvAt(t *testing.T, srv *httptest.Server) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	t.Setenv(config.EnvServerIP, u.Hostname())
	t.Setenv(config.EnvPort, u.Port())
}

func writeFrames(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := range 16 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame-001.jpg"), buf.Bytes(), 0o600))
	return dir
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	envFile := isolateEnv(t)
	t.Setenv(config.EnvServerIP, "192.168.1.4")

	v := viper.New()
	v.Set("env-file", envFile)
	v.Set("server", "10.0.0.5")
	v.Set("lang", "hi")
	v.Set("metrics-addr", ":9191")

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.5:8000/ws/video", cfg.StreamURL())
	assert.Equal(t, "hi", cfg.Spec.Language)
	assert.Equal(t, ":9191", cfg.Spec.Metrics.Addr)
}

func TestLoadConfig_ReadsManifest(t *testing.T) {
	envFile := isolateEnv(t)
	path := filepath.Join(t.TempDir(), "stream.yaml")
	manifest := `apiVersion: sightkit.altairalabs.ai/v1alpha1
kind: StreamConfig
spec:
  server:
    host: 10.1.1.1
    port: 9000
  session:
    payloadEncoding: binary
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))

	v := viper.New()
	v.Set("env-file", envFile)
	v.Set("config", path)

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.1.1.1:9000/ws/video", cfg.StreamURL())
	assert.Equal(t, config.EncodingBinary, cfg.Spec.Session.PayloadEncoding)
}

func TestLoadConfig_RequiresHost(t *testing.T) {
	envFile := isolateEnv(t)
	v := viper.New()
	v.Set("env-file", envFile)

	_, err := loadConfig(v)
	require.Error(t, err)
	assert.True(t, skerrors.IsKind(err, skerrors.KindConfig))
}

func TestSessionTemplate(t *testing.T) {
	cfg := config.Default()
	cfg.Spec.Server.Host = "10.0.0.2"
	cfg.Spec.Session.PayloadEncoding = config.EncodingBinary

	tmpl := sessionTemplate(cfg, nil)
	assert.Equal(t, "ws://10.0.0.2:8000/ws/video", tmpl.URL)
	assert.Equal(t, "en", tmpl.Language)
	assert.Equal(t, streaming.EncodingBinary, tmpl.Encoding)
	assert.Equal(t, config.DefaultMaxReconnects, tmpl.MaxReconnects)
	assert.False(t, tmpl.DisableReconnect)
	assert.Equal(t, cfg.Spec.Capture.FrameInterval.Std(), tmpl.FrameInterval)
	assert.Equal(t, cfg.Spec.Session.ReconnectDelay.Std(), tmpl.ReconnectDelay)
	require.NotNil(t, tmpl.Dialer)

	zero := 0
	cfg.Spec.Session.MaxReconnects = &zero
	assert.True(t, sessionTemplate(cfg, nil).DisableReconnect)
}

func TestCaptureAndAnnounceOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Spec.Capture.MaxWidth = 640

	co := captureOptions(cfg)
	assert.Equal(t, 640, co.MaxWidth)
	assert.True(t, co.SuppressShutter)
	assert.InDelta(t, config.DefaultQuality, co.Quality, 0.0001)

	ao := announceOptions(cfg)
	assert.InDelta(t, float64(config.DefaultScreenWidth), ao.ScreenWidth, 0.0001)
	assert.Equal(t, cfg.Spec.Announce.RepeatWindow.Std(), ao.RepeatWindow)
}

func TestRunCommand_PrintsAnnouncements(t *testing.T) {
	envFile := isolateEnv(t)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for range 2 {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		reply := `{"status":"success","detected_objects":[{"label":"chair","bbox":[100,50,300,400],"confidence":0.9}]}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	pointEnvAt(t, srv)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"run", "--images", writeFrames(t), "--duration", "800ms", "--env-file", envFile})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "chair is in the center")
}

func TestRunCommand_RequiresImages(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run"})
	assert.Error(t, root.Execute())
}

func TestTranslateCommand(t *testing.T) {
	envFile := isolateEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text       string `json:"text"`
			TargetLang string `json:"target_lang"`
		}
		if r.URL.Path != "/translate" || json.NewDecoder(r.Body).Decode(&req) != nil || req.TargetLang != "hi" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"translated_text": "नमस्ते दुनिया"})
	}))
	defer srv.Close()
	pointEnvAt(t, srv)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"translate", "--lang", "hi", "--env-file", envFile, "hello", "world"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "नमस्ते दुनिया\n", out.String())
}

func TestLanguagesCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"languages"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "en\tEnglish")
	assert.Contains(t, out.String(), "hi\tहिंदी")
}

func TestLanguageChangeResetsRepeatSuppression(t *testing.T) {
	var out bytes.Buffer
	p := &probe{
		log:       logger.For("streamprobe"),
		out:       &out,
		announcer: announce.New(announce.Options{RepeatWindow: time.Minute}),
	}
	result := &events.Event{
		Type:     events.EventResultReceived,
		Language: "en",
		Data: events.ResultReceivedData{
			Result: &detection.Result{Status: detection.StatusSuccess, TranslatedText: "door ahead"},
		},
	}

	p.onResult(result)
	p.onResult(result)
	assert.Equal(t, 1, strings.Count(out.String(), "door ahead"))

	p.onLanguageChanged(&events.Event{Type: events.EventLanguageChanged})
	p.onResult(result)
	assert.Equal(t, 2, strings.Count(out.String(), "door ahead"))
	assert.Equal(t, 3, p.results)
}
