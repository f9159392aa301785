package api

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yangwenmai/aiworkspace/internal/engine"
	"github.com/yangwenmai/aiworkspace/internal/files"
	"github.com/yangwenmai/aiworkspace/internal/model"
	"github.com/yangwenmai/aiworkspace/internal/store"
)

// maxJSONBody is the maximum allowed JSON request body size (1 MB).
const maxJSONBody int64 = 1 << 20

//go:embed web
var webFS embed.FS

// Deps are the collaborators of the API server. Engines are constructed by
// the caller; the server holds no other state.
type Deps struct {
	Classifier engine.ImageClassifier
	Sentiment  engine.SentimentAnalyzer
	Answerer   engine.QuestionAnswerer
	Generator  engine.TextGenerator
	Translator engine.TextTranslator

	Files *files.Manager

	// Artifacts records generated audio for later purge and gates serving
	// it. Optional.
	Artifacts   store.ArtifactIndex
	ArtifactTTL time.Duration

	MaxUploadBytes    int64
	MaxConcurrentJobs int64
	CORSOrigin        string
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	deps Deps
	jobs *semaphore.Weighted
	mux  *http.ServeMux
}

// New creates a new API server.
func New(d Deps) *Server {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	if d.MaxConcurrentJobs <= 0 {
		d.MaxConcurrentJobs = 8
	}
	if d.ArtifactTTL <= 0 {
		d.ArtifactTTL = time.Hour
	}
	if d.CORSOrigin == "" {
		d.CORSOrigin = "*"
	}
	srv := &Server{
		deps: d,
		jobs: semaphore.NewWeighted(d.MaxConcurrentJobs),
		mux:  http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return logRequests(corsMiddleware(s.deps.CORSOrigin, recoverPanic(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/translate", s.handleTranslate)
	s.mux.HandleFunc("POST /api/classify-image", s.handleClassifyImage)
	s.mux.HandleFunc("POST /api/analyze-sentiment", s.handleAnalyzeSentiment)
	s.mux.HandleFunc("POST /api/voice-qa", s.handleVoiceQA)
	s.mux.HandleFunc("POST /api/generate-text", s.handleGenerateText)

	s.mux.HandleFunc("GET /static/uploads/{name}", s.handleServeArtifact)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	pages := map[string]string{
		"GET /{$}":                  "index.html",
		"GET /image-classification": "image_classification.html",
		"GET /sentiment-analysis":   "sentiment_analysis.html",
		"GET /qa":                   "qa.html",
		"GET /text-generation":      "text_generation.html",
		"GET /translation":          "translation.html",
	}
	for pattern, page := range pages {
		s.mux.HandleFunc(pattern, servePage(page))
	}
	assets, _ := fs.Sub(webFS, "web")
	s.mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(assets)))

	// Unknown API routes still answer in JSON.
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func servePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		b, err := webFS.ReadFile("web/" + name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(b)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for origin.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic turns a panicking handler into a JSON 500.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				slog.Error("handler panic", "path", r.URL.Path, "panic", v)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorReport{Error: msg})
}

// writeFailure is the single boundary between typed errors and the HTTP
// error shape: validation errors are 400, everything else is 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}

	msg := err.Error()
	var pe *model.ProcessingError
	if errors.As(err, &pe) {
		msg = pe.Err.Error()
		slog.Error("request failed", "path", r.URL.Path, "stage", pe.StageName(), "error", pe.Err)
	} else {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, http.StatusInternalServerError, msg)
}
