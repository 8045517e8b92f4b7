// Package openrouter implements the recognition engine contract on top of the
// OpenRouter chat-completions API, sending images to a vision model for OCR.
package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"textgrab/engine"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxRetries     = 3
	initialDelay   = 1 * time.Second
)

// Config carries the OpenRouter credentials and routing preferences.
type Config struct {
	APIKey string
	Model  string
	// Providers pins OpenRouter to specific upstream providers, in order.
	// Empty means default routing.
	Providers []string
	// BaseURL overrides the API endpoint. Empty means the public API.
	BaseURL string
}

// Engine is an OpenRouter-backed OCR engine.
type Engine struct {
	cfg        Config
	base       string
	client     *http.Client
	retryDelay time.Duration
	progress   engine.ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress registers a progress listener.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// WithHTTPClient replaces the default 45s-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// New creates an OpenRouter engine. Call Init before Recognize.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		base:       cfg.BaseURL,
		client:     &http.Client{Timeout: 45 * time.Second},
		retryDelay: initialDelay,
	}
	if e.base == "" {
		e.base = defaultBaseURL
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "openrouter" }

func (e *Engine) emit(status string, fraction float64) {
	if e.progress != nil {
		e.progress(engine.Progress{Status: status, Fraction: fraction})
	}
}

// Init validates the configuration and pings the API so a bad key or an
// unreachable endpoint surfaces at startup instead of on the first image.
// The language code is not used; vision models detect the language.
func (e *Engine) Init(ctx context.Context, language string) error {
	if e.cfg.APIKey == "" {
		return &engine.InitError{Engine: e.Name(), Err: errors.New("API key is required")}
	}
	if e.cfg.Model == "" {
		return &engine.InitError{Engine: e.Name(), Err: errors.New("model is required")}
	}

	e.emit("contacting OpenRouter", 0.2)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.base+"/models", nil)
	if err != nil {
		return &engine.InitError{Engine: e.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return &engine.InitError{Engine: e.Name(), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &engine.InitError{Engine: e.Name(), Err: fmt.Errorf("models ping returned status %d", resp.StatusCode)}
	}

	e.emit("recognizer ready", 1)
	return nil
}

// Terminate drops idle connections. The API itself is stateless.
func (e *Engine) Terminate(ctx context.Context) error {
	e.client.CloseIdleConnections()
	return nil
}

// OpenRouter API structures.
type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type providerPreferences struct {
	Order          []string `json:"order,omitempty"`
	Quantizations  []string `json:"quantizations,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *providerPreferences `json:"provider,omitempty"`
}

type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message responseMessage `json:"message"`
}

type responseMessage struct {
	Content string `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // can be string or number
}

func (e *Engine) providerPreferences() *providerPreferences {
	if len(e.cfg.Providers) == 0 {
		// No providers specified, use default OpenRouter routing.
		return nil
	}
	allowFallbacks := false
	return &providerPreferences{
		Order:          e.cfg.Providers,
		AllowFallbacks: &allowFallbacks,
	}
}

// Recognize sends the image to the configured vision model and returns the
// extracted text. Transient API failures are retried with backoff.
func (e *Engine) Recognize(ctx context.Context, image []byte) (engine.Result, error) {
	e.emit("preparing image", 0.05)
	base64Image := base64.StdEncoding.EncodeToString(image)
	dataURI := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64Image)

	request := chatRequest{
		Model: e.cfg.Model,
		Messages: []message{
			{
				Role: "user",
				Content: []content{
					{Type: "text", Text: engine.VisionPrompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
		Provider:    e.providerPreferences(),
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			e.emit(fmt.Sprintf("retrying (attempt %d)", attempt+1), 0.25)
			delay := time.Duration(float64(e.retryDelay) * (1.5 * float64(attempt)))
			select {
			case <-ctx.Done():
				return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: ctx.Err()}
			case <-time.After(delay):
			}
		} else {
			e.emit("waiting for model", 0.25)
		}

		response, err := e.makeAPIRequest(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: ctx.Err()}
			}
			lastErr = err
			continue
		}

		if len(response.Choices) == 0 {
			lastErr = errors.New("no choices in API response")
			continue
		}

		raw := response.Choices[0].Message.Content
		text := engine.CleanVisionText(raw)
		if text == "" || raw == engine.NoTextSentinel {
			return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: engine.ErrNoText}
		}

		e.emit("finished", 1)
		return engine.Result{Text: text}, nil
	}

	return engine.Result{}, &engine.RecognitionError{
		Engine: e.Name(),
		Err:    fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr),
	}
}

func (e *Engine) makeAPIRequest(ctx context.Context, request chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	req.Header.Set("X-Title", "textgrab")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("api error %q (type %s, code %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return &response, nil
}
