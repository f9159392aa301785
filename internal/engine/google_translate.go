package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const defaultTranslateURL = "https://translate.google.com/m"

// browserUserAgent avoids the stripped-down page served to unknown clients.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrEmptyTranslation is returned when the result page has no translation.
var ErrEmptyTranslation = errors.New("no translation in response")

// GoogleTranslator implements Translator by scraping the mobile Google
// Translate page. No API key is needed.
type GoogleTranslator struct {
	baseURL    string
	httpClient *http.Client
}

// GoogleTranslatorOption configures the translator.
type GoogleTranslatorOption func(*GoogleTranslator)

// WithTranslateURL overrides the translate page URL.
func WithTranslateURL(u string) GoogleTranslatorOption {
	return func(t *GoogleTranslator) { t.baseURL = u }
}

// WithTranslateTimeout sets the HTTP timeout.
func WithTranslateTimeout(d time.Duration) GoogleTranslatorOption {
	return func(t *GoogleTranslator) { t.httpClient.Timeout = d }
}

// NewGoogleTranslator creates a GoogleTranslator.
func NewGoogleTranslator(opts ...GoogleTranslatorOption) *GoogleTranslator {
	t := &GoogleTranslator{
		baseURL:    defaultTranslateURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates text from sourceLang to targetLang.
func (t *GoogleTranslator) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	out, err := withRetry(ctx, 2, func() (string, error) {
		return t.doTranslate(ctx, text, targetLang, sourceLang)
	})
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	return out, nil
}

func (t *GoogleTranslator) doTranslate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	q := url.Values{}
	q.Set("sl", sourceLang)
	q.Set("tl", targetLang)
	q.Set("hl", targetLang)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	body, err := fetch(t.httpClient, req)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	result := strings.TrimSpace(doc.Find("div.result-container").First().Text())
	if result == "" {
		return "", ErrEmptyTranslation
	}
	return result, nil
}
