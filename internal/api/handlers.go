package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/yangwenmai/aiworkspace/internal/files"
	"github.com/yangwenmai/aiworkspace/internal/model"
)

// emptyTextPrompt is returned by translate instead of calling the engine.
const emptyTextPrompt = "Please enter some text."

const audioExt = ".wav"

var errNoFile = &model.ValidationError{Message: "No file"}

// runJob runs fn under the engine concurrency limit and wraps any failure
// in a ProcessingError naming stage.
func runJob[T any](ctx context.Context, s *Server, stage string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := s.jobs.Acquire(ctx, 1); err != nil {
		return zero, &model.ProcessingError{Stage: stage, Err: err}
	}
	defer s.jobs.Release(1)

	out, err := fn(ctx)
	if err != nil {
		return zero, &model.ProcessingError{Stage: stage, Err: err}
	}
	return out, nil
}

// decodeOptionalJSON decodes the body into v. A missing or malformed body
// leaves v at its zero value.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("ignoring malformed JSON body", "path", r.URL.Path, "error", err)
	}
}

// formFile returns the uploaded "file" part. Any failure to find it is a
// validation error.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, *model.UploadedMedia, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, &model.ValidationError{Message: "File too large"}
		}
		return nil, nil, errNoFile
	}
	media := &model.UploadedMedia{
		ID:          uuid.New().String(),
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Size:        hdr.Size,
	}
	return f, media, nil
}

// storeUpload persists an uploaded audio file as prefix + media.ID and
// returns its path. The caller must discard it.
func (s *Server) storeUpload(f io.Reader, media *model.UploadedMedia, prefix string) (string, error) {
	path, err := s.deps.Files.Store(f, prefix, media.ID, audioExt)
	if err != nil {
		return "", &model.ProcessingError{Stage: "store_upload", Err: err}
	}
	slog.Debug("stored upload", "upload", media, "path", path)
	return path, nil
}

// textField accepts any JSON value where text is expected. Strings are used
// as is; other values use their JSON text unless they are false, 0, null or
// an empty array or object, which count as no text.
type textField string

func (t *textField) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	empty := false
	switch x := v.(type) {
	case string:
		*t = textField(x)
		return nil
	case nil:
		empty = true
	case bool:
		empty = !x
	case float64:
		empty = x == 0
	case []any:
		empty = len(x) == 0
	case map[string]any:
		empty = len(x) == 0
	}
	if empty {
		*t = ""
		return nil
	}
	*t = textField(bytes.TrimSpace(b))
	return nil
}

func (s *Server) discard(path string) {
	if err := s.deps.Files.Discard(path); err != nil {
		slog.Error("failed to remove temp input", "path", path, "error", err)
	}
}

// ---------------------------------------------------------------------------
// POST /api/translate
// ---------------------------------------------------------------------------

type translateRequest struct {
	Text textField `json:"text"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	decodeOptionalJSON(w, r, &req)

	if req.Text == "" {
		writeJSON(w, http.StatusOK, model.Translation{TranslatedText: emptyTextPrompt})
		return
	}

	out, err := runJob(r.Context(), s, "translate", func(ctx context.Context) (string, error) {
		return s.deps.Translator.Translate(ctx, string(req.Text)), nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Translation{TranslatedText: out})
}

// ---------------------------------------------------------------------------
// POST /api/classify-image
// ---------------------------------------------------------------------------

func (s *Server) handleClassifyImage(w http.ResponseWriter, r *http.Request) {
	f, media, err := s.formFile(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		writeFailure(w, r, &model.ProcessingError{Stage: "decode_image", Err: err})
		return
	}
	// Normalise to 8-bit RGB(A) regardless of the source color model.
	rgb := imaging.Clone(img)

	results, err := runJob(r.Context(), s, "classify", func(ctx context.Context) ([]model.Classification, error) {
		res, err := s.deps.Classifier.Classify(ctx, rgb)
		if err == nil && len(res) == 0 {
			err = errors.New("classifier returned no labels")
		}
		return res, err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	slog.Debug("classified image", "upload", media, "label", results[0].Label)
	writeJSON(w, http.StatusOK, results[0])
}

// ---------------------------------------------------------------------------
// POST /api/analyze-sentiment
// ---------------------------------------------------------------------------

func (s *Server) handleAnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	f, media, err := s.formFile(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer f.Close()

	path, err := s.storeUpload(f, media, files.PrefixSentimentInput)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer s.discard(path)

	res, err := runJob(r.Context(), s, "analyze_sentiment", func(ctx context.Context) (model.Sentiment, error) {
		return s.deps.Sentiment.Analyze(ctx, path)
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// POST /api/voice-qa
// ---------------------------------------------------------------------------

func (s *Server) handleVoiceQA(w http.ResponseWriter, r *http.Request) {
	f, media, err := s.formFile(w, r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer f.Close()

	path, err := s.storeUpload(f, media, files.PrefixQuestionInput)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer s.discard(path)

	ans, err := runJob(r.Context(), s, "voice_qa", func(ctx context.Context) (model.Answer, error) {
		return s.deps.Answerer.Ask(ctx, path, s.deps.Files.Dir())
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if ans.AudioAvailable {
		s.recordSpeech(r.Context(), ans.AudioFile)
	}
	writeJSON(w, http.StatusOK, ans)
}

// recordSpeech adds a generated reply to the artifact ledger. A ledger
// failure only delays the purge of the file; it never fails the request.
func (s *Server) recordSpeech(ctx context.Context, name string) {
	if s.deps.Artifacts == nil {
		return
	}
	a := model.NewArtifact(uuid.New().String(), name, model.ArtifactSpeech, s.deps.Files.Path(name), s.deps.ArtifactTTL)
	if err := s.deps.Artifacts.RecordArtifact(ctx, a); err != nil {
		slog.Error("failed to record artifact", "name", name, "error", err)
	}
}

// ---------------------------------------------------------------------------
// POST /api/generate-text
// ---------------------------------------------------------------------------

type generateRequest struct {
	Prompt textField `json:"prompt"`
}

func (s *Server) handleGenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	decodeOptionalJSON(w, r, &req)

	out, err := runJob(r.Context(), s, "generate_text", func(ctx context.Context) (string, error) {
		return s.deps.Generator.Generate(ctx, string(req.Prompt))
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Generation{GeneratedText: out})
}

// ---------------------------------------------------------------------------
// GET /static/uploads/{name}
// ---------------------------------------------------------------------------

func (s *Server) handleServeArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	// Inputs are private to the request that uploaded them.
	if filepath.Ext(name) == audioExt {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	path, err := s.deps.Files.Resolve(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	// Only recorded, unexpired replies are served; the janitor may not have
	// purged an expired one yet.
	if s.deps.Artifacts != nil {
		a, err := s.deps.Artifacts.GetArtifactByName(r.Context(), name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "file not found")
			return
		case err != nil:
			writeFailure(w, r, &model.ProcessingError{Stage: "lookup_artifact", Err: err})
			return
		case a.Expired(time.Now()):
			writeError(w, http.StatusNotFound, "file expired")
			return
		}
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}
