package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultSpeechURL = "https://translate.google.com/translate_tts"
	// maxSpeechChunk is the longest text the endpoint accepts per request.
	maxSpeechChunk = 100
)

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("text cannot be empty")

// GoogleSpeech implements Synthesizer with the Google Translate
// text-to-speech endpoint. Output is MP3.
type GoogleSpeech struct {
	baseURL    string
	httpClient *http.Client
}

// GoogleSpeechOption configures the synthesizer.
type GoogleSpeechOption func(*GoogleSpeech)

// WithSpeechURL overrides the TTS endpoint.
func WithSpeechURL(u string) GoogleSpeechOption {
	return func(s *GoogleSpeech) { s.baseURL = u }
}

// WithSpeechTimeout sets the HTTP timeout.
func WithSpeechTimeout(d time.Duration) GoogleSpeechOption {
	return func(s *GoogleSpeech) { s.httpClient.Timeout = d }
}

// NewGoogleSpeech creates a GoogleSpeech synthesizer.
func NewGoogleSpeech(opts ...GoogleSpeechOption) *GoogleSpeech {
	s := &GoogleSpeech{
		baseURL:    defaultSpeechURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize speaks text in lang. Long text is split into chunks whose MP3
// frames are concatenated.
func (s *GoogleSpeech) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	chunks := splitSpeech(text, maxSpeechChunk)
	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}

	var out bytes.Buffer
	for i, chunk := range chunks {
		audio, err := withRetry(ctx, 2, func() ([]byte, error) {
			return s.fetchChunk(ctx, chunk, lang, i, len(chunks))
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out.Write(audio)
	}
	return out.Bytes(), nil
}

func (s *GoogleSpeech) fetchChunk(ctx context.Context, text, lang string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	audio, err := fetch(s.httpClient, req)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}
	return audio, nil
}

// splitSpeech breaks text into chunks of at most limit runes, preferring
// word boundaries. Words longer than limit are cut.
func splitSpeech(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > limit {
			flush()
			runes := []rune(word)
			chunks = append(chunks, string(runes[:limit]))
			word = string(runes[limit:])
		}
		wl := utf8.RuneCountInString(word)
		if curLen > 0 && curLen+1+wl > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += wl
	}
	flush()
	return chunks
}
