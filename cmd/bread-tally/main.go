package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/bread-tally/internal/counting"
	"github.com/zombor/bread-tally/internal/record"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; configuration may come from the environment directly
	_ = godotenv.Load()

	fs := ff.NewFlagSet("bread-tally")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		storeType      = fs.StringLong("store", "bolt", "Record store: 'bolt' or 'sqlite'")
		dbPath         = fs.StringLong("db", "bread-tally.db", "Database file path")
		timezone       = fs.StringLong("timezone", "Local", "Time zone used for daily totals (e.g. Europe/Madrid)")
		counterType    = fs.StringLong("counter", "gemini", "Vision service: 'gemini', 'ollama' or 'anthropic'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		anthropicKey   = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicModel = fs.StringLong("anthropic-model", "claude-3-haiku-20240307", "Anthropic model name")
		anthropicURL   = fs.StringLong("anthropic-url", "https://api.anthropic.com", "Anthropic API base URL")
		accountsPath   = fs.StringLong("accounts", "", "JSON accounts file for basic auth; without it identity is read from proxy headers")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BREAD_TALLY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		slog.Error("Invalid timezone", "timezone", *timezone, "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...", "store", *storeType, "path", *dbPath)
	var db record.DB
	switch *storeType {
	case "bolt":
		db, err = record.NewBoltDB(*dbPath)
	case "sqlite":
		db, err = record.NewSQLiteDB(*dbPath)
	default:
		err = fmt.Errorf("invalid store type %q, valid: bolt or sqlite", *storeType)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize counter based on type
	var counter counting.Counter
	switch *counterType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini counter...", "model", *geminiModel)
		counter, err = counting.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama counter...", "url", *ollamaURL, "model", *ollamaModel)
		counter, err = counting.NewOllama(*ollamaURL, *ollamaModel)
	case "anthropic":
		apiKey := *anthropicKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		slog.Info("Initializing Anthropic counter...", "model", *anthropicModel)
		counter, err = counting.NewAnthropic(apiKey, *anthropicModel, *anthropicURL)
	default:
		slog.Error("Invalid counter type", "type", *counterType, "valid", "gemini, ollama or anthropic")
		os.Exit(1)
	}
	if errors.Is(err, counting.ErrMissingCredentials) {
		// Keep serving records and statistics; new submissions report the configuration error
		slog.Warn("Vision service credentials missing, ingestion is disabled", "counter", *counterType)
		counter, err = counting.Unconfigured{}, nil
	}
	if err != nil {
		slog.Error("Failed to initialize counter", "error", err)
		os.Exit(1)
	}
	defer counter.Close()

	// Initialize identity resolution
	var resolver record.IdentityResolver = record.HeaderResolver{}
	if *accountsPath != "" {
		accounts, err := record.LoadAccounts(*accountsPath)
		if err != nil {
			slog.Error("Failed to load accounts", "error", err)
			os.Exit(1)
		}
		resolver = accounts
		slog.Info("Basic auth enabled", "accounts", *accountsPath)
	} else {
		slog.Warn("No accounts file configured, trusting identity headers from the reverse proxy")
	}

	recordService := record.NewService(db, counter, loc)
	server := record.NewServer(recordService, resolver)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

