package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/SightKit/announce"
	"github.com/AltairaLabs/SightKit/capture"
	"github.com/AltairaLabs/SightKit/config"
	"github.com/AltairaLabs/SightKit/events"
	"github.com/AltairaLabs/SightKit/lifecycle"
	"github.com/AltairaLabs/SightKit/logger"
	metrics "github.com/AltairaLabs/SightKit/metrics/prometheus"
	"github.com/AltairaLabs/SightKit/prefs"
	"github.com/AltairaLabs/SightKit/telemetry"
)

const shutdownTimeout = 5 * time.Second

// errDisconnected is reported by /health once the session gave up.
var errDisconnected = errors.New("stream disconnected")

// probe is the assembled client stack.
type probe struct {
	cfg       *config.StreamConfig
	log       *logger.ComponentLogger
	out       io.Writer
	bus       *events.EventBus
	source    *capture.Source
	coord     *lifecycle.Coordinator
	announcer *announce.Announcer
	exporter  *metrics.Exporter
	tracing   *telemetry.AttemptListener
	tp        *sdktrace.TracerProvider
	redis     *redis.Client

	mu      sync.Mutex
	spoken  int
	results int
}

func newProbe(ctx context.Context, cfg *config.StreamConfig, imagesDir string, out io.Writer) (*probe, error) {
	cam, err := capture.NewDirCamera(imagesDir)
	if err != nil {
		return nil, err
	}

	p := &probe{
		cfg:       cfg,
		log:       logger.For("streamprobe"),
		out:       out,
		bus:       events.NewEventBus(),
		source:    capture.NewSource(cam, captureOptions(cfg)),
		announcer: announce.New(announceOptions(cfg)),
	}

	store, err := p.prefsStore()
	if err != nil {
		p.bus.Close()
		return nil, err
	}

	if err := p.setupTelemetry(ctx); err != nil {
		p.log.Warn("tracing disabled", "error", err)
	}
	if addr := cfg.Spec.Metrics.Addr; addr != "" {
		p.exporter = metrics.NewExporter(addr, metrics.WithHealth(p.health))
		p.bus.SubscribeAll(metrics.NewMetricsListener().Handle)
	}
	p.bus.Subscribe(events.EventResultReceived, p.onResult)
	p.bus.Subscribe(events.EventLanguageChanged, p.onLanguageChanged)
	p.bus.Subscribe(events.EventSessionDisconnected, func(e *events.Event) {
		if data, ok := e.Data.(events.SessionDisconnectedData); ok {
			fmt.Fprintf(p.out, "disconnected after %d reconnects\n", data.Reconnects)
		}
	})

	p.coord = lifecycle.NewCoordinator(lifecycle.Config{
		Stream: sessionTemplate(cfg, p.source),
		Prefs:  store,
		Bus:    p.bus,
	})
	return p, nil
}

func (p *probe) prefsStore() (prefs.Store, error) {
	spec := p.cfg.Spec.Prefs
	if spec.Backend != config.PrefsRedis {
		return prefs.NewMemoryStore(), nil
	}
	p.redis = redis.NewClient(&redis.Options{Addr: spec.RedisAddr})
	return prefs.NewRedisStore(p.redis, prefs.WithPrefix(spec.Prefix)), nil
}

func (p *probe) setupTelemetry(ctx context.Context) error {
	spec := p.cfg.Spec.Telemetry
	if spec.Endpoint == "" {
		return nil
	}
	tp, err := telemetry.NewTracerProvider(ctx, spec.Endpoint, spec.ServiceName)
	if err != nil {
		return err
	}
	telemetry.Install(tp)
	p.tp = tp
	p.tracing = telemetry.NewAttemptListener(telemetry.Tracer(tp))
	p.bus.SubscribeAll(p.tracing.OnEvent)
	return nil
}

func (p *probe) health() error {
	if p.coord.State().Disconnected {
		return errDisconnected
	}
	return nil
}

// onResult prints the phrases a screen reader would speak.
func (p *probe) onResult(e *events.Event) {
	data, ok := e.Data.(events.ResultReceivedData)
	if !ok {
		return
	}
	phrases := p.announcer.Phrases(data.Result, e.Language)

	p.mu.Lock()
	p.results++
	p.spoken += len(phrases)
	p.mu.Unlock()

	ctx := logger.WithTargetLang(logger.WithSessionID(context.Background(), e.SessionID), e.Language)
	for _, phrase := range phrases {
		p.log.DebugContext(ctx, "announce", "phrase", phrase)
		fmt.Fprintln(p.out, phrase)
	}
}

// onLanguageChanged lets phrases heard in the old language be spoken again.
func (p *probe) onLanguageChanged(*events.Event) {
	p.announcer.Reset()
}

// run focuses the stream screen until ctx ends.
func (p *probe) run(ctx context.Context) error {
	if err := p.coord.Restore(ctx); err != nil {
		return err
	}
	if lang := p.cfg.Spec.Language; lang != "" && lang != prefs.DefaultLanguage {
		if err := p.coord.SetLanguage(ctx, lang); err != nil {
			return err
		}
	}

	release, err := p.coord.FocusScreen()
	if err != nil {
		return err
	}
	defer release()
	p.log.Info("probe started", "url", p.cfg.StreamURL(), "target_lang", p.coord.State().Language)

	g, gctx := errgroup.WithContext(ctx)
	if p.exporter != nil {
		g.Go(func() error { return p.exporter.Serve(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// close tears the stack down in dependency order.
func (p *probe) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := p.coord.Close(ctx); err != nil {
		p.log.Warn("session did not finish before shutdown", "error", err)
	}
	p.bus.Close()
	p.source.Release()

	if p.tracing != nil {
		p.tracing.Flush()
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			p.log.Warn("tracer shutdown failed", "error", err)
		}
	}
	if p.redis != nil {
		_ = p.redis.Close()
	}

	p.mu.Lock()
	p.log.Info("probe finished", "results", p.results, "phrases", p.spoken)
	p.mu.Unlock()
}
