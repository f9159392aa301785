package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/api"
	"github.com/yangwenmai/aiworkspace/internal/config"
	"github.com/yangwenmai/aiworkspace/internal/engine"
	"github.com/yangwenmai/aiworkspace/internal/files"
	"github.com/yangwenmai/aiworkspace/internal/store"
	"github.com/yangwenmai/aiworkspace/internal/worker"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(cfg config.Config) error {
	fm, err := files.New(cfg.UploadDir)
	if err != nil {
		return err
	}

	// Open SQLite.
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger, err := store.New(db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Janitor: expired replies and orphaned inputs share the artifact TTL.
	// It must stop before db is closed.
	janitor := worker.New(ledger, fm, fm.Dir(), "temp_", cfg.ArtifactTTL)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	janitorErr := make(chan error, 1)
	go func() { janitorErr <- janitor.Start(janitorCtx, cfg.PurgeSchedule) }()
	waitJanitor := func() error {
		stopJanitor()
		return <-janitorErr
	}

	srv := api.New(buildDeps(cfg, fm, ledger))
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("aiworkspace listening", "addr", "http://localhost:"+cfg.Port, "uploads", fm.Dir())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return errors.Join(err, waitJanitor())
	case err := <-janitorErr:
		// Start only returns early on an invalid schedule.
		stopJanitor()
		shutdown(httpServer, cfg.ShutdownTimeout)
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	err = shutdown(httpServer, cfg.ShutdownTimeout)
	return errors.Join(err, waitJanitor())
}

func shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func buildDeps(cfg config.Config, fm *files.Manager, ledger *store.Store) api.Deps {
	simulate := cfg.SimulatedLatency

	var translator engine.Translator = engine.StubTranslator{}
	if cfg.UseRealTranslator {
		translator = engine.NewGoogleTranslator(engine.WithTranslateTimeout(cfg.HTTPTimeout))
	}

	var speech engine.Synthesizer = engine.StubSynthesizer{}
	if cfg.UseRealSpeech {
		speech = engine.NewGoogleSpeech(engine.WithSpeechTimeout(cfg.HTTPTimeout))
	}

	var generator engine.TextGenerator = engine.NewStubGenerator(simulate)
	if cfg.UseModelGenerator() {
		slog.Info("using OpenAI-compatible text generator", "model", cfg.OpenAIModel)
		opts := []engine.OpenAIOption{
			engine.WithModel(cfg.OpenAIModel),
			engine.WithTimeout(cfg.HTTPTimeout),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, engine.WithBaseURL(cfg.OpenAIBaseURL))
		}
		generator = engine.NewCompletionGenerator(engine.NewOpenAIClient(cfg.OpenAIKey, opts...))
	} else {
		slog.Info("OPENAI_API_KEY not set, using stub text generator")
	}

	return api.Deps{
		Classifier:        engine.NewStubClassifier(simulate),
		Sentiment:         engine.NewStubSentimentAnalyzer(simulate),
		Answerer:          engine.NewSpeakingAnswerer(speech, fm, simulate),
		Generator:         generator,
		Translator:        engine.NewTranslationEngine(translator, simulate),
		Files:             fm,
		Artifacts:         ledger,
		ArtifactTTL:       cfg.ArtifactTTL,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		CORSOrigin:        cfg.CORSOrigin,
	}
}
