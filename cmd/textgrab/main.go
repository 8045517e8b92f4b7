package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"textgrab/acquire"
	"textgrab/config"
	"textgrab/controller"
	"textgrab/engine"
	"textgrab/engine/openai"
	"textgrab/engine/openrouter"
	"textgrab/engine/tesseract"
	"textgrab/logutil"
	"textgrab/server"
)

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	addr       string
	engineName string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"textgrab"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textgrab",
		Short: "Grab text out of images",
		Long: "textgrab serves a local web page where images become text:\n" +
			"upload a file, paste from the clipboard, or grab the screen.\n" +
			"With --file it recognizes a single image and exits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Recognize a single image and exit (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output one-shot results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for the web UI (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.engineName, "engine", "", "Recognition engine: openrouter, openai or tesseract (overrides ENGINE)")

	return cmd
}

// normalizeLegacyArgs maps single-dash flags (Go flag style) to the
// double-dash form cobra expects, so '-file x' keeps working.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	known := []string{"file", "json", "verbose", "api-key-path", "addr", "engine"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range known {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func runWithOptions(ctx context.Context, opts cliOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.engineName != "" {
		cfg.Engine = opts.engineName
	}
	if opts.addr != "" {
		cfg.ListenAddr = opts.addr
	}

	logutil.Setup(cfg.EnableFileLogging, cfg.Debug || opts.verbose)

	eng, relay, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	if opts.filePath != "" {
		return runOnce(ctx, eng, cfg, opts)
	}

	ctrl := controller.New(eng, controller.Config{
		Language: cfg.Language,
		Deadline: time.Duration(cfg.RecognizeDeadlineSec) * time.Second,
		PoolSize: cfg.PoolSize,
	})
	relay.bind(ctrl)

	return serve(ctx, ctrl, cfg)
}

// progressRelay forwards engine progress callbacks into the controller.
// Engines are constructed before the controller exists, so the target is
// bound late.
type progressRelay struct {
	mu   sync.Mutex
	ctrl *controller.Controller
}

func (r *progressRelay) bind(c *controller.Controller) {
	r.mu.Lock()
	r.ctrl = c
	r.mu.Unlock()
}

func (r *progressRelay) relay(p engine.Progress) {
	r.mu.Lock()
	c := r.ctrl
	r.mu.Unlock()
	if c != nil {
		c.OnProgress(p)
	}
}

func buildEngine(cfg *config.Config) (engine.Engine, *progressRelay, error) {
	kind, err := engine.ParseKind(cfg.Engine)
	if err != nil {
		return nil, nil, err
	}

	relay := &progressRelay{}
	switch kind {
	case engine.KindOpenRouter:
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("no API key found. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
		}
		if cfg.Model == "" {
			return nil, nil, fmt.Errorf("MODEL is required for the openrouter engine")
		}
		log.Info().
			Str("model", cfg.Model).
			Str("api_key", logutil.RedactKey(cfg.APIKey)).
			Msg("using OpenRouter engine")
		return openrouter.New(openrouter.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Providers: cfg.Providers,
			BaseURL:   cfg.BaseURL,
		}, openrouter.WithProgress(relay.relay)), relay, nil

	case engine.KindOpenAI:
		if cfg.APIKey == "" {
			return nil, nil, fmt.Errorf("no API key found. Checked key file %s and OPENAI_API_KEY env var", cfg.APIKeyPath)
		}
		if cfg.Model == "" {
			return nil, nil, fmt.Errorf("MODEL is required for the openai engine")
		}
		log.Info().
			Str("model", cfg.Model).
			Str("api_key", logutil.RedactKey(cfg.APIKey)).
			Msg("using OpenAI engine")
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}, openai.WithProgress(relay.relay)), relay, nil

	case engine.KindTesseract:
		log.Info().Str("language", cfg.Language).Msg("using Tesseract engine")
		return tesseract.New(tesseract.WithProgress(relay.relay)), relay, nil
	}

	return nil, nil, fmt.Errorf("unsupported engine %q", cfg.Engine)
}

// runOnce recognizes a single image synchronously and prints the result,
// bypassing the web workflow entirely.
func runOnce(ctx context.Context, eng engine.Engine, cfg *config.Config, opts cliOptions) error {
	var imageData []byte
	var err error

	if opts.filePath == "-" {
		imageData, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		imageData, err = os.ReadFile(opts.filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
		}
	}

	payload, err := acquire.FromBytes(imageData, opts.filePath, cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}

	if err := eng.Init(ctx, cfg.Language); err != nil {
		return fmt.Errorf("engine startup failed: %w", err)
	}
	defer func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Terminate(termCtx)
	}()

	recCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RecognizeDeadlineSec)*time.Second)
	defer cancel()

	startTime := time.Now()
	res, err := eng.Recognize(recCtx, payload.Data)
	elapsed := time.Since(startTime)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	return outputResult(res.Text, opts.filePath, elapsed, opts.jsonOutput)
}

type recognitionOutput struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(text string, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if jsonOutput {
		result := recognitionOutput{
			Text:      text,
			Source:    sourcePath,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Duration:  elapsed.Seconds(),
			CharCount: len(text),
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		fmt.Print(text)
	}

	return nil
}

func serve(ctx context.Context, ctrl *controller.Controller, cfg *config.Config) error {
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.Start(ctx)

	srv := server.New(ctrl, acquire.NewClipboard(), cfg.MaxUploadBytes)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.ListenAddr) }()

	log.Info().Str("addr", cfg.ListenAddr).Msg("textgrab listening")
	fmt.Printf("textgrab running at http://%s\n", cfg.ListenAddr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// After stop a second interrupt takes the default path and kills the
	// process even if the drain below stalls.
	stop()

	log.Info().Msg("shutting down")
	if err := srv.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("server shutdown failed")
	}
	return nil
}
