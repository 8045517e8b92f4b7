// Package openai implements the recognition engine contract for the OpenAI
// API and compatible endpoints (Groq, DeepSeek, local gateways) through the
// go-openai SDK.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"textgrab/engine"
)

// Config carries the credentials and endpoint for an OpenAI-compatible API.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the endpoint for compatible providers. Empty means
	// the public OpenAI API.
	BaseURL string
}

// Engine is an OpenAI-backed OCR engine.
type Engine struct {
	cfg      Config
	client   *goopenai.Client
	progress engine.ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress registers a progress listener.
func WithProgress(fn engine.ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an OpenAI engine. Call Init before Recognize.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) emit(status string, fraction float64) {
	if e.progress != nil {
		e.progress(engine.Progress{Status: status, Fraction: fraction})
	}
}

// Init builds the SDK client and lists models as a startup health check. The
// language code is not used; vision models detect the language.
func (e *Engine) Init(ctx context.Context, language string) error {
	if e.cfg.APIKey == "" {
		return &engine.InitError{Engine: e.Name(), Err: errors.New("API key is required")}
	}
	if e.cfg.Model == "" {
		return &engine.InitError{Engine: e.Name(), Err: errors.New("model is required")}
	}

	clientCfg := goopenai.DefaultConfig(e.cfg.APIKey)
	if e.cfg.BaseURL != "" {
		clientCfg.BaseURL = e.cfg.BaseURL
	}
	e.client = goopenai.NewClientWithConfig(clientCfg)

	e.emit("contacting API", 0.2)
	if _, err := e.client.ListModels(ctx); err != nil {
		return &engine.InitError{Engine: e.Name(), Err: err}
	}

	e.emit("recognizer ready", 1)
	return nil
}

// Terminate is a no-op; the SDK holds no resources worth releasing.
func (e *Engine) Terminate(ctx context.Context) error { return nil }

// Recognize sends the image to the configured vision model and returns the
// extracted text.
func (e *Engine) Recognize(ctx context.Context, image []byte) (engine.Result, error) {
	if e.client == nil {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: errors.New("engine not initialized")}
	}

	e.emit("preparing image", 0.05)
	dataURI := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))

	req := goopenai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Temperature: 0.1,
		MaxTokens:   2000,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role: goopenai.ChatMessageRoleUser,
				MultiContent: []goopenai.ChatMessagePart{
					{
						Type: goopenai.ChatMessagePartTypeText,
						Text: engine.VisionPrompt,
					},
					{
						Type: goopenai.ChatMessagePartTypeImageURL,
						ImageURL: &goopenai.ChatMessageImageURL{
							URL:    dataURI,
							Detail: goopenai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	e.emit("waiting for model", 0.25)
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: err}
	}
	if len(resp.Choices) == 0 {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: errors.New("no choices in API response")}
	}

	raw := resp.Choices[0].Message.Content
	text := engine.CleanVisionText(raw)
	if text == "" || raw == engine.NoTextSentinel {
		return engine.Result{}, &engine.RecognitionError{Engine: e.Name(), Err: engine.ErrNoText}
	}

	e.emit("finished", 1)
	return engine.Result{Text: text}, nil
}
