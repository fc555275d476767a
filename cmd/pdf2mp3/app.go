package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/cache"
	"github.com/boxtvsaltogif/pdf-mp3/internal/config"
	"github.com/boxtvsaltogif/pdf-mp3/internal/gemini"
	"github.com/boxtvsaltogif/pdf-mp3/internal/history"
	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3"
	"github.com/boxtvsaltogif/pdf-mp3/internal/mp3/shine"
	"github.com/boxtvsaltogif/pdf-mp3/internal/nap"
	"github.com/boxtvsaltogif/pdf-mp3/internal/notify"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pipeline"
	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
	"github.com/boxtvsaltogif/pdf-mp3/internal/telemetry"
)

const natsConnectTimeout = 2 * time.Second

// app holds the wired collaborators shared by the convert and serve commands.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	orch    *pipeline.Orchestrator
	history *history.Store
	metrics *telemetry.Metrics

	closers []func()
}

type appOptions struct {
	// exportMetrics installs the Prometheus-backed meter provider.
	exportMetrics bool
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	recorder := telemetry.NewRecorder(logger, nil)
	if opts.exportMetrics {
		m, err := telemetry.SetupMetrics(ctx, appinfo.Info.Slug, appinfo.Version(), logger)
		if err != nil {
			logger.Warn("metrics disabled", "error", err)
		} else {
			a.metrics = m
			recorder = telemetry.NewRecorder(logger, m.Provider)
			a.closers = append(a.closers, func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = m.Shutdown(shutdownCtx)
			})
		}
	}

	backend, err := a.newBackend()
	if err != nil {
		a.close()
		return nil, err
	}

	synth := speech.New(backend, speech.Options{
		Model:             cfg.Model,
		SegmentSize:       cfg.SegmentSize,
		SampleRate:        cfg.SampleRate,
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      cfg.InitialDelay,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, logger, recorder, a.newCache())

	a.history = a.openHistory(ctx)

	a.orch = pipeline.New(pipeline.Config{
		APIKey:        cfg.APIKey,
		RequireAPIKey: cfg.Backend == config.BackendGemini,
		CatalogVoices: cfg.Backend != config.BackendNAP,
		DefaultVoice:  cfg.Voice,
		Model:         cfg.Model,
		SampleRate:    cfg.SampleRate,
		HistoryKeep:   cfg.HistoryKeep,
	}, pipeline.Deps{
		Synthesizer: synth,
		Encoder:     mp3.NewAdapter(shine.New, cfg.BitrateKbps, logger),
		Notifier:    a.newNotifier(),
		History:     a.history,
		Metrics:     recorder,
		Logger:      logger,
	})

	logger.Info("pdf2mp3 ready",
		"version", appinfo.Version(),
		"backend", backend.Name(),
		"model", cfg.Model,
		"voice", cfg.Voice,
		"segment_size", cfg.SegmentSize,
		"max_retries", cfg.MaxRetries,
	)
	return a, nil
}

func (a *app) newBackend() (speech.Backend, error) {
	if a.cfg.UseStub() {
		a.log.Info("using STUB synthesizer, audio is silence and NOT from the speech API")
		return gemini.NewStubSynthesizer(a.log), nil
	}
	switch a.cfg.Backend {
	case config.BackendNAP:
		client, err := nap.Dial(a.cfg.NAPAddr, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return client, nil
	default:
		client := gemini.NewClient(a.cfg.APIKey)
		if a.cfg.BaseURL != "" {
			client = client.WithBaseURL(a.cfg.BaseURL)
		}
		return client, nil
	}
}

func (a *app) newCache() *cache.Cache {
	if a.cfg.CacheMaxSizeMB <= 0 {
		return nil
	}
	dir := a.cfg.CacheDir
	if dir == "" {
		var err error
		if dir, err = config.UserCacheDir(); err != nil {
			a.log.Warn("no cache directory, continuing without cache", "error", err)
			return nil
		}
	}
	c, err := cache.New(dir, int64(a.cfg.CacheMaxSizeMB)*1024*1024, a.log,
		cache.WithCompressionLevel(a.cfg.CacheCompressionLevel))
	if err != nil {
		a.log.Warn("failed to initialize cache, continuing without", "error", err)
		return nil
	}
	a.closers = append(a.closers, func() { _ = c.Close() })
	a.log.Debug("segment cache initialized", "dir", dir, "max_size_mb", a.cfg.CacheMaxSizeMB)
	return c
}

func (a *app) openHistory(ctx context.Context) *history.Store {
	path := a.cfg.HistoryPath
	if path == "" {
		if p, err := config.UserDataPath("history.db"); err == nil {
			path = p
		}
	}
	store, err := history.Open(ctx, path, a.log)
	if err != nil {
		a.log.Warn("job history unavailable", "error", err)
		store, _ = history.Open(ctx, "", a.log)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	return store
}

func (a *app) newNotifier() notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(a.log)}
	if a.cfg.Bell {
		notifiers = append(notifiers, notify.NewBellNotifier(os.Stderr))
	}
	if a.cfg.NATSURL != "" {
		conn, err := notify.ConnectNATS(a.cfg.NATSURL, appinfo.Info.Slug, natsConnectTimeout, a.log)
		if err != nil {
			a.log.Warn("completion events disabled", "error", err)
		} else {
			a.closers = append(a.closers, func() { notify.CloseNATS(conn) })
			notifiers = append(notifiers, notify.NewNATSNotifier(conn, a.cfg.NATSSubject, a.log))
		}
	}
	return notifiers
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadConfig runs the config loader with the persistent flags applied.
func loadConfig(file, levelOverride string, logger *slog.Logger) (config.Config, error) {
	cfg, err := config.Loader{File: file, Logger: logger}.Load()
	if err != nil {
		return config.Config{}, err
	}
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}
	return cfg, nil
}

// exitError carries a message already shown to the user.
type exitError struct {
	err error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func isShown(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

func describeBackend(cfg config.Config) string {
	if cfg.UseStub() {
		return "stub"
	}
	switch cfg.Backend {
	case config.BackendNAP:
		return fmt.Sprintf("nap (%s)", cfg.NAPAddr)
	default:
		return fmt.Sprintf("gemini (%s)", cfg.Model)
	}
}
