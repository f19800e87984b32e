package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/logger"
)

func translateServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTranslate_Success(t *testing.T) {
	srv, calls := translateServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/translate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "a chair", req.Text)
		assert.Equal(t, "hi", req.TargetLang)

		_ = json.NewEncoder(w).Encode(response{TranslatedText: "एक कुर्सी"})
	})

	c := NewClient(srv.URL + "/translate")
	out, err := c.Translate(context.Background(), "a chair", "hi")
	require.NoError(t, err)
	assert.Equal(t, "एक कुर्सी", out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTranslate_ShortCircuits(t *testing.T) {
	srv, calls := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := NewClient(srv.URL)
	ctx := context.Background()

	for _, tc := range []struct{ text, lang string }{
		{"hello", "en"},
		{"", "hi"},
		{"   ", "hi"},
		{"hello", ""},
	} {
		out, err := c.Translate(ctx, tc.text, tc.lang)
		require.NoError(t, err)
		assert.Equal(t, tc.text, out)
	}
	assert.Zero(t, calls.Load())
}

func TestTranslate_EmptyTranslationKeepsOriginal(t *testing.T) {
	srv, _ := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"translated_text":""}`))
	})

	out, err := NewClient(srv.URL).Translate(context.Background(), "door", "hi")
	require.NoError(t, err)
	assert.Equal(t, "door", out)
}

func TestTranslate_HTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"bad request", http.StatusBadRequest, ErrTranslationFailed},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
		{"server error", http.StatusBadGateway, ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			out, err := NewClient(srv.URL).Translate(context.Background(), "cup", "hi")
			require.Error(t, err)
			assert.Equal(t, "cup", out)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, skerrors.IsKind(err, skerrors.KindService))
			assert.Contains(t, err.Error(), "nope")

			var ce *skerrors.ContextualError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.status, ce.StatusCode)
		})
	}
}

func TestTranslate_MalformedResponse(t *testing.T) {
	srv, _ := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"translated_text":`))
	})

	out, err := NewClient(srv.URL).Translate(context.Background(), "cup", "hi")
	require.Error(t, err)
	assert.Equal(t, "cup", out)
	assert.True(t, skerrors.IsKind(err, skerrors.KindProtocol))
}

func TestTranslate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := NewClient(url, WithTimeout(time.Second)).Translate(context.Background(), "cup", "hi")
	require.Error(t, err)
	assert.Equal(t, "cup", out)
	assert.True(t, skerrors.IsKind(err, skerrors.KindService))
}

func TestTranslate_RateLimitHonoursContext(t *testing.T) {
	srv, calls := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"translated_text":"x"}`))
	})
	c := NewClient(srv.URL, WithRateLimit(0.001, 1))

	_, err := c.Translate(context.Background(), "one", "hi")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := c.Translate(ctx, "two", "hi")
	require.Error(t, err)
	assert.Equal(t, "two", out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWithHTTPClient(t *testing.T) {
	srv, _ := translateServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"translated_text":"ok"}`))
	})
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	out, err := c.Translate(context.Background(), "a", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestTranslate_InvalidEndpoint(t *testing.T) {
	out, err := NewClient("http://127.0.0.1/\x7ftranslate").Translate(context.Background(), "cup", "hi")
	require.Error(t, err)
	assert.Equal(t, "cup", out)
	assert.True(t, skerrors.IsKind(err, skerrors.KindService))
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestTranslate_RequestID(t *testing.T) {
	ids := make(chan string, 2)
	srv, _ := translateServer(t, func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		_, _ = w.Write([]byte(`{"translated_text":"ok"}`))
	})
	c := NewClient(srv.URL)

	_, err := c.Translate(context.Background(), "a", "hi")
	require.NoError(t, err)
	generated := <-ids
	_, err = uuid.Parse(generated)
	assert.NoError(t, err, "a fresh request id is generated")

	ctx := logger.WithRequestID(context.Background(), "req-42")
	_, err = c.Translate(ctx, "b", "hi")
	require.NoError(t, err)
	assert.Equal(t, "req-42", <-ids)
}
