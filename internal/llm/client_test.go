package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizforge/internal/llm"
)

func TestClient_GenerateJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"questions\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := llm.NewClient(llm.Config{BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "m1"})

	out, err := c.GenerateJSON(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, `{"questions":[]}`, out)

	assert.Equal(t, "m1", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "sys", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "usr", msgs[1].(map[string]any)["content"])
}

func TestClient_GenerateJSON_Errors(t *testing.T) {
	tests := map[string]struct {
		handler http.HandlerFunc
		wantErr string
	}{
		"non-200 status": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte("slow down"))
			},
			wantErr: "status 429: slow down",
		},
		"no choices": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"choices":[]}`))
			},
			wantErr: "no choices",
		},
		"api error": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"message":"bad model"}}`))
			},
			wantErr: "bad model",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := llm.NewClient(llm.Config{BaseURL: srv.URL})
			_, err := c.GenerateJSON(context.Background(), "s", "u")
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestClient_GenerateJSON_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := llm.NewClient(llm.Config{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GenerateJSON(ctx, "s", "u")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
