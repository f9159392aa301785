package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers every completion with the handler's reply.
func chatServer(t *testing.T, reply func(w http.ResponseWriter, req chatRequest)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reply(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func TestOpenAIClient_Options(t *testing.T) {
	c := NewOpenAIClient("sk-test")
	assert.Equal(t, defaultOpenAIEndpoint, c.endpoint)
	assert.Equal(t, defaultOpenAIModel, c.model)

	c = NewOpenAIClient("", WithBaseURL("http://localhost:11434/v1/"), WithModel("llama3"))
	assert.Equal(t, "http://localhost:11434/v1", c.endpoint)
	assert.Equal(t, "llama3", c.model)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-mock", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "Once upon a time", req.Messages[1].Content)
		assert.Equal(t, continuationMaxTokens, req.MaxTokens)

		writeChoice(w, "there was a gopher.")
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-mock", WithModel("test-model"), WithBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), "Once upon a time")
	require.NoError(t, err)
	assert.Equal(t, "there was a gopher.", got)
}

func TestOpenAIClient_NoKeyNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeChoice(w, "ok")
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("", WithBaseURL(srv.URL)).Complete(context.Background(), "x")
	require.NoError(t, err)
}

func TestOpenAIClient_Failures(t *testing.T) {
	tests := []struct {
		name     string
		reply    func(w http.ResponseWriter, req chatRequest)
		wantHits int32
		wantErr  string
	}{
		{
			name: "no choices",
			reply: func(w http.ResponseWriter, _ chatRequest) {
				w.Write([]byte(`{"choices":[]}`))
			},
			wantHits: 1,
			wantErr:  ErrNoChoices.Error(),
		},
		{
			name: "error body",
			reply: func(w http.ResponseWriter, _ chatRequest) {
				w.Write([]byte(`{"error":{"message":"model overloaded"}}`))
			},
			wantHits: 1,
			wantErr:  "model overloaded",
		},
		{
			name: "unauthorized is not retried",
			reply: func(w http.ResponseWriter, _ chatRequest) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
			},
			wantHits: 1,
			wantErr:  "401",
		},
		{
			name: "server error is retried",
			reply: func(w http.ResponseWriter, _ chatRequest) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantHits: 2,
			wantErr:  "502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := chatServer(t, tt.reply)
			_, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL)).Complete(context.Background(), "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestOpenAIClient_RecoversAfterServerError(t *testing.T) {
	var calls int
	srv, hits := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeChoice(w, "recovered")
	})

	got, err := NewOpenAIClient("sk-test", WithBaseURL(srv.URL)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.EqualValues(t, 2, hits.Load())
}

// TestIntegration_OpenAI calls a real chat model configured in .env.local.
// Run explicitly:  go test ./internal/engine/ -run TestIntegration -v
func TestIntegration_OpenAI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if err := godotenv.Load("../../.env.local"); err != nil {
		t.Skip("skipping: ../../.env.local not found")
	}
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("skipping: OPENAI_API_KEY not set")
	}

	var opts []OpenAIOption
	if u := os.Getenv("OPENAI_BASE_URL"); u != "" {
		opts = append(opts, WithBaseURL(u))
	}
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		opts = append(opts, WithModel(m))
	}

	got, err := NewCompletionGenerator(NewOpenAIClient(apiKey, opts...)).Generate(context.Background(), "Hello")
	require.NoError(t, err)
	t.Logf("generated: %s", got)
	assert.True(t, strings.HasPrefix(got, "Hello") && len(got) > len("Hello"), "got %q", got)
}
