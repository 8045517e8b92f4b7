package main

import (
	"reflect"
	"strings"
	"testing"

	"textgrab/config"
	"textgrab/engine"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "SingleDashFlag",
			args: []string{"textgrab", "-file", "shot.png"},
			want: []string{"textgrab", "--file", "shot.png"},
		},
		{
			name: "SingleDashWithValue",
			args: []string{"textgrab", "-file=shot.png", "-json"},
			want: []string{"textgrab", "--file=shot.png", "--json"},
		},
		{
			name: "DoubleDashUntouched",
			args: []string{"textgrab", "--file", "shot.png", "--engine=openai"},
			want: []string{"textgrab", "--file", "shot.png", "--engine=openai"},
		},
		{
			name: "ShorthandUntouched",
			args: []string{"textgrab", "-v", "-addr", ":9000"},
			want: []string{"textgrab", "-v", "--addr", ":9000"},
		},
		{
			name: "Empty",
			args: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeLegacyArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildEngineValidation(t *testing.T) {
	t.Run("MissingKey", func(t *testing.T) {
		_, _, err := buildEngine(&config.Config{Engine: "openrouter", APIKeyPath: "/nonexistent"})
		if err == nil || !strings.Contains(err.Error(), "API key") {
			t.Errorf("Expected missing key error, got %v", err)
		}
	})

	t.Run("MissingModel", func(t *testing.T) {
		_, _, err := buildEngine(&config.Config{Engine: "openrouter", APIKey: "k"})
		if err == nil || !strings.Contains(err.Error(), "MODEL is required") {
			t.Errorf("Expected missing model error, got %v", err)
		}
	})

	t.Run("UnknownEngine", func(t *testing.T) {
		_, _, err := buildEngine(&config.Config{Engine: "abbyy"})
		if err == nil {
			t.Error("Expected error for unknown engine")
		}
	})

	t.Run("Tesseract", func(t *testing.T) {
		eng, relay, err := buildEngine(&config.Config{Engine: "tesseract", Language: "eng"})
		if err != nil {
			t.Fatalf("Tesseract engine should build without credentials: %v", err)
		}
		if eng.Name() != "tesseract" || relay == nil {
			t.Errorf("Unexpected engine %q", eng.Name())
		}
	})

	t.Run("OpenAI", func(t *testing.T) {
		eng, _, err := buildEngine(&config.Config{Engine: "openai", APIKey: "k", Model: "gpt-4o-mini"})
		if err != nil {
			t.Fatalf("OpenAI engine should build: %v", err)
		}
		if eng.Name() != "openai" {
			t.Errorf("Unexpected engine %q", eng.Name())
		}
	})
}

func TestProgressRelayUnboundIsSafe(t *testing.T) {
	relay := &progressRelay{}
	// Engines may emit progress before a controller is bound.
	relay.relay(engine.Progress{Status: "warming up", Fraction: 0.1})
}
