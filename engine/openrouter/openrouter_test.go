package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"textgrab/engine"
)

func TestInitPingsAPI(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	var events []engine.Progress
	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL},
		WithProgress(func(p engine.Progress) { events = append(events, p) }))

	if err := e.Init(context.Background(), "eng"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("wrong auth header: %q", gotAuth)
	}
	if len(events) == 0 || events[len(events)-1].Fraction != 1 {
		t.Fatalf("expected a final ready progress event, got %v", events)
	}
}

func TestInitRejectsBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := New(Config{APIKey: "bad-key", Model: "test-model", BaseURL: srv.URL})
	err := e.Init(context.Background(), "eng")
	var ie *engine.InitError
	if !errors.As(err, &ie) {
		t.Fatalf("want InitError, got %v", err)
	}
}

func TestInitRequiresKeyAndModel(t *testing.T) {
	var ie *engine.InitError
	if err := New(Config{Model: "m"}).Init(context.Background(), "eng"); !errors.As(err, &ie) {
		t.Fatalf("missing key: want InitError, got %v", err)
	}
	if err := New(Config{APIKey: "k"}).Init(context.Background(), "eng"); !errors.As(err, &ie) {
		t.Fatalf("missing model: want InitError, got %v", err)
	}
}

func TestRecognizeExtractsText(t *testing.T) {
	var mu sync.Mutex
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		mu.Lock()
		json.NewDecoder(r.Body).Decode(&gotReq)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"Hallo Welt</image>"}}]}`))
	}))
	defer srv.Close()

	e := New(Config{
		APIKey:    "test-key",
		Model:     "test-model",
		Providers: []string{"DeepInfra", "Groq"},
		BaseURL:   srv.URL,
	})

	res, err := e.Recognize(context.Background(), []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "Hallo Welt" {
		t.Fatalf("artifact not cleaned, got %q", res.Text)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotReq.Model != "test-model" {
		t.Errorf("wrong model %q", gotReq.Model)
	}
	if gotReq.Temperature != 0.1 || gotReq.MaxTokens != 2000 {
		t.Errorf("wrong sampling params: %v %v", gotReq.Temperature, gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 || len(gotReq.Messages[0].Content) != 2 {
		t.Fatalf("unexpected message shape: %+v", gotReq.Messages)
	}
	img := gotReq.Messages[0].Content[1].ImageURL
	if img == nil || !strings.HasPrefix(img.URL, "data:image/png;base64,") {
		t.Errorf("image not sent as data URI: %+v", img)
	}
	if gotReq.Provider == nil || len(gotReq.Provider.Order) != 2 || gotReq.Provider.AllowFallbacks == nil || *gotReq.Provider.AllowFallbacks {
		t.Errorf("provider preferences not pinned: %+v", gotReq.Provider)
	}
}

func TestRecognizeNoTextSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"NO_TEXT_FOUND"}}]}`))
	}))
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	_, err := e.Recognize(context.Background(), []byte("img"))
	if !errors.Is(err, engine.ErrNoText) {
		t.Fatalf("want ErrNoText, got %v", err)
	}
	var re *engine.RecognitionError
	if !errors.As(err, &re) {
		t.Fatalf("want RecognitionError, got %v", err)
	}
}

func TestRecognizeRetriesTransientFailures(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"second try"}}]}`))
	}))
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	e.retryDelay = time.Millisecond

	res, err := e.Recognize(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "second try" {
		t.Fatalf("wrong text %q", res.Text)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("want 2 attempts, got %d", attempts)
	}
}

func TestRecognizeGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"down","type":"server_error"}}`))
	}))
	defer srv.Close()

	e := New(Config{APIKey: "test-key", Model: "test-model", BaseURL: srv.URL})
	e.retryDelay = time.Millisecond

	_, err := e.Recognize(context.Background(), []byte("img"))
	var re *engine.RecognitionError
	if !errors.As(err, &re) {
		t.Fatalf("want RecognitionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") {
		t.Fatalf("retry count missing from error: %v", err)
	}
}
