// Package translate is a client for the inference service's text
// translation endpoint.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/logger"
)

const (
	component = "translate"

	defaultTimeout = 5 * time.Second
	defaultRPS     = 5
	defaultBurst   = 2

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 512

	// RequestIDHeader carries the request id logged with each call.
	RequestIDHeader = "X-Request-ID"
)

var log = logger.For(component)

// SourceLanguage is the language the service produces text in. Requests
// targeting it are not sent.
const SourceLanguage = "en"

var (
	// ErrTranslationFailed is returned for non-2xx responses.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrRateLimited is returned when the service answers 429.
	ErrRateLimited = errors.New("translation rate limited")
	// ErrServiceUnavailable is returned for 5xx responses.
	ErrServiceUnavailable = errors.New("translation service unavailable")
)

type request struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

type response struct {
	TranslatedText string `json:"translated_text"`
}

// Client calls POST /translate.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing or proxies).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a client for endpoint, e.g.
// "http://192.168.1.20:8000/translate". Requests are traced through otelhttp.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(defaultRPS, defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate returns text translated into lang. Empty text and the source
// language short-circuit. On any failure the original text is returned along
// with the error so callers can still speak something.
func (c *Client) Translate(ctx context.Context, text, lang string) (string, error) {
	if strings.TrimSpace(text) == "" || lang == "" || lang == SourceLanguage {
		return text, nil
	}

	if logger.ExtractLoggingFields(ctx).RequestID == "" {
		ctx = logger.WithRequestID(ctx, uuid.NewString())
	}

	out, err := c.translate(ctx, text, lang)
	if err != nil {
		log.WarnContext(ctx, "translation failed", "target_lang", lang, "error", err)
		return text, err
	}
	if out == "" {
		return text, nil
	}
	return out, nil
}

func (c *Client) translate(ctx context.Context, text, lang string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", skerrors.New(skerrors.KindService, component, "Translate", err)
	}

	body, err := json.Marshal(request{Text: text, TargetLang: lang})
	if err != nil {
		return "", skerrors.New(skerrors.KindService, component, "Translate",
			fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", skerrors.New(skerrors.KindService, component, "Translate",
			fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, logger.ExtractLoggingFields(ctx).RequestID)

	log.DebugContext(ctx, "translating", "target_lang", lang, "chars", len(text))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", skerrors.New(skerrors.KindService, component, "Translate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.handleError(resp)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", skerrors.New(skerrors.KindProtocol, component, "Translate", err)
	}
	return out.TranslatedText, nil
}

func (c *Client) handleError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	sentinel := ErrTranslationFailed
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		sentinel = ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		sentinel = ErrServiceUnavailable
	}

	cause := sentinel
	if detail := strings.TrimSpace(string(msg)); detail != "" {
		cause = fmt.Errorf("%w: %s", sentinel, detail)
	}
	return skerrors.New(skerrors.KindService, component, "Translate", cause).
		WithStatusCode(resp.StatusCode)
}
