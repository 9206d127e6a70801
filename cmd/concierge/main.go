// Package main is the concierge CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/concierge/internal/cli"
	"github.com/hyperjump/concierge/internal/config"
	"github.com/hyperjump/concierge/internal/models"
	"github.com/hyperjump/concierge/internal/pipeline"
	"github.com/hyperjump/concierge/internal/server"
	"github.com/hyperjump/concierge/internal/watcher"
	"github.com/hyperjump/concierge/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/concierge/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "chat":
		runChat()
	case "index":
		runIndex()
	case "version", "--version", "-v":
		fmt.Printf("concierge version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// app is a loaded config, its logger and the wired components.
type app struct {
	*Components
	cfg    *config.Config
	logger *zap.Logger
}

// openApp loads configPath and wires every component. debug forces debug logging.
func openApp(ctx context.Context, configPath string, debug bool) (*app, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || debug))
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return &app{Components: components, cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	a.Components.Close()
	_ = a.logger.Sync()
}

// exitf prints to stderr and exits with status 1.
func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (stage transitions, knowledge indexing, etc.)")
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a, err := openApp(ctx, *configPath, *debug)
	if err != nil {
		exitf("Failed to start: %v", err)
	}
	defer a.Close()

	if kc := a.cfg.Knowledge; kc.Watch && len(kc.Directories) > 0 {
		w := watcher.New(a.Knowledge, kc.Directories, kc.RecursiveOrDefault(), watcher.WithLogger(a.logger))
		if err := w.Start(ctx); err != nil {
			a.logger.Error("watcher not started", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	srv := server.NewServer(a.Pipeline, a.Knowledge, a.cfg, a.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server failed", zap.Error(err))
		}
		return
	case <-ctx.Done():
	}
	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildMessage joins all positional args with spaces so multi-word messages
// work the same with or without shell quoting.
func buildMessage(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// chatArgsReorder moves any flags (and their values) that appear after the message
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func chatArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// chatRequest builds the request body from flag values. lat and lng are only sent
// when both flags were given.
func chatRequest(userID, message string, lat, lng float64, hasLocation bool) models.ChatRequest {
	req := models.ChatRequest{UserID: userID, Message: message}
	if hasLocation {
		req.Lat = &lat
		req.Lng = &lng
	}
	return req
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL; empty runs the pipeline in-process")
	userID := fs.String("user", "", "user id for profile enrichment")
	lat := fs.Float64("lat", 0, "latitude of the customer")
	lng := fs.Float64("lng", 0, "longitude of the customer")
	outputFormat := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(chatArgsReorder(os.Args[2:]))

	message := buildMessage(fs.Args())
	if message == "" {
		fmt.Println("Usage: concierge chat [flags] <message>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	hasLocation := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "lat" || f.Name == "lng" {
			hasLocation = true
		}
	})
	req := chatRequest(*userID, message, *lat, *lng, hasLocation)
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid request: %v\n", err)
		os.Exit(1)
	}

	var res cli.ChatResult
	if *serverURL != "" {
		res, err = chatViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		res = chatDirect(*configPath, req)
	}
	if err := cli.WriteChatResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if res.Error != "" {
		os.Exit(2)
	}
}

func chatDirect(configPath string, req models.ChatRequest) cli.ChatResult {
	ctx := context.Background()
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		exitf("Failed to start: %v", err)
	}
	defer a.Close()

	run, err := a.Pipeline.Handle(ctx, pipeline.Request{
		UserID:    req.UserID,
		Utterance: req.Message,
		Location:  req.Location(),
	})
	return cli.NewChatResult(run, err)
}

func chatViaHTTP(serverURL string, req models.ChatRequest) (cli.ChatResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return cli.ChatResult{}, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return cli.ChatResult{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeChatResponse(resp.StatusCode, resp.Body)
}

// decodeChatResponse turns a /api/v1/chat reply into a ChatResult.
func decodeChatResponse(status int, body io.Reader) (cli.ChatResult, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return cli.ChatResult{}, fmt.Errorf("read response: %w", err)
	}
	if status == http.StatusOK {
		var ok models.ChatResponse
		if err := json.Unmarshal(b, &ok); err != nil {
			return cli.ChatResult{}, fmt.Errorf("decode response: %w", err)
		}
		return cli.ChatResult{RunID: ok.RunID, State: string(pipeline.StateCompleted), Response: ok.Response}, nil
	}
	var failed models.ErrorResponse
	if err := json.Unmarshal(b, &failed); err != nil || failed.Error == "" {
		return cli.ChatResult{}, fmt.Errorf("server returned %d: %s", status, string(b))
	}
	return cli.ChatResult{
		RunID:     failed.RunID,
		State:     string(pipeline.StateFailed),
		Error:     failed.Error,
		Stage:     failed.Stage,
		Retryable: failed.Retryable,
	}, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: concierge index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		exitf("Cannot index %s: %v", path, err)
	}

	ctx := context.Background()
	a, err := openApp(ctx, *configPath, false)
	if err != nil {
		exitf("Failed to start: %v", err)
	}
	defer a.Close()

	if !info.IsDir() {
		if err := a.Knowledge.IndexFile(ctx, path); err != nil {
			a.Close()
			exitf("Indexing failed: %v", err)
		}
		fmt.Printf("Indexed %s\n", path)
		return
	}
	n, err := a.Knowledge.IndexDirectory(ctx, path)
	if err != nil {
		a.Close()
		exitf("Indexing directory failed: %v", err)
	}
	fmt.Printf("Indexed %d file(s) from %s\n", n, path)
}

func printUsage() {
	fmt.Println(`concierge - PII-safe neighbourhood concierge

Usage:
  concierge server [flags]           Start the HTTP server
  concierge chat [flags] <message>   Send one message through the pipeline
  concierge index [flags] <path>     Add a file or directory to the knowledge base
  concierge version                  Show version
  concierge help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/concierge/config.yaml)
  --debug            Enable debug logging

Chat Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL; empty runs the pipeline in-process
  --user string      User id for profile enrichment
  --lat, --lng       Customer location (both required together)
  --format string    Output format: text or json (default: text)

Index Flags:
  --config string    Config file path

Examples:
  concierge server
  concierge chat --user u_001 --lat 37.7749 --lng -122.4194 "I'm cold, anything warm nearby?"
  concierge chat --server http://localhost:8080 --format json "Call me at 555-123-4567"
  concierge index ./knowledge/menus`)
}
