package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"textgrab/engine"
)

// fakeAPI emulates the slice of the OpenAI API the engine touches.
func fakeAPI(t *testing.T, completionBody string, capture *json.RawMessage) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			w.Write([]byte(`{"object":"list","data":[{"id":"test-model","object":"model"}]}`))
		case "/v1/chat/completions":
			if capture != nil {
				mu.Lock()
				var raw json.RawMessage
				json.NewDecoder(r.Body).Decode(&raw)
				*capture = raw
				mu.Unlock()
			}
			w.Write([]byte(completionBody))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestInitListsModels(t *testing.T) {
	srv := fakeAPI(t, "", nil)
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	if err := e.Init(context.Background(), "eng"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

func TestInitReportsAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := New(Config{APIKey: "bad-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	err := e.Init(context.Background(), "eng")
	var ie *engine.InitError
	if !errors.As(err, &ie) {
		t.Fatalf("want InitError, got %v", err)
	}
}

func TestRecognizeSendsVisionPayload(t *testing.T) {
	var captured json.RawMessage
	srv := fakeAPI(t, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hallo Welt"},"finish_reason":"stop"}]}`, &captured)
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	if err := e.Init(context.Background(), "eng"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	res, err := e.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "Hallo Welt" {
		t.Fatalf("wrong text %q", res.Text)
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				ImageURL *struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(captured, &req); err != nil {
		t.Fatalf("failed to decode captured request: %v", err)
	}
	if req.Model != "test-model" {
		t.Errorf("wrong model %q", req.Model)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %s", captured)
	}
	img := req.Messages[0].Content[1].ImageURL
	if img == nil || !strings.HasPrefix(img.URL, "data:image/png;base64,") {
		t.Errorf("image not sent as data URI: %s", captured)
	}
}

func TestRecognizeNoTextSentinel(t *testing.T) {
	srv := fakeAPI(t, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"NO_TEXT_FOUND"},"finish_reason":"stop"}]}`, nil)
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL + "/v1"})
	if err := e.Init(context.Background(), "eng"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	_, err := e.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, engine.ErrNoText) {
		t.Fatalf("want ErrNoText, got %v", err)
	}
}

func TestRecognizeBeforeInit(t *testing.T) {
	e := New(Config{APIKey: "k", Model: "m"})
	_, err := e.Recognize(context.Background(), []byte("img"))
	var re *engine.RecognitionError
	if !errors.As(err, &re) {
		t.Fatalf("want RecognitionError, got %v", err)
	}
}
