package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/bronze/internal/bronze"
	"github.com/tinytelemetry/bronze/internal/fetch"
	"github.com/tinytelemetry/bronze/internal/httpserver"
	"github.com/tinytelemetry/bronze/internal/model"
	"golang.org/x/sync/errgroup"
)

const shutdownGrace = 10 * time.Second

// runServer serves the bronze HTTP API until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	cleanupLogger, err := configureRuntimeLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging to stderr\n", err)
	}
	defer cleanupLogger()

	apiServer := httpserver.NewServer(httpserver.Config{
		Addr:           cfg.APIAddr,
		DefaultTimeout: cfg.Timeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Fetcher:        perRequestFetcher{userAgent: "bronze/" + version},
		Preparer:       bronze.NewPreparer(),
	})
	if err := apiServer.Listen(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	log.Printf("api: listening on %s (max fetch timeout %v)", apiServer.Addr(), cfg.Timeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStartupBanner(cfg)

	if err := serveUntilDone(ctx, stop, apiServer, shutdownGrace); err != nil {
		log.Printf("server: exited with error: %v", err)
		return err
	}
	log.Printf("server: stopped")
	return nil
}

// apiRunner is the lifecycle subset of httpserver.Server used by serveUntilDone.
type apiRunner interface {
	Serve() error
	Shutdown(ctx context.Context) error
}

// serveUntilDone runs srv until ctx ends or Serve fails, then shuts it down
// within grace. release restores default signal handling once shutdown starts,
// so a second Ctrl+C terminates the process immediately.
func serveUntilDone(ctx context.Context, release func(), srv apiRunner, grace time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Serve)

	g.Go(func() error {
		<-gctx.Done()
		release()
		if ctx.Err() != nil {
			fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		}

		// Shutdown deadline starts now, not at boot.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// perRequestFetcher builds a fresh client per request with the request's timeout.
type perRequestFetcher struct {
	userAgent string
}

func (f perRequestFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]model.Record, error) {
	client := fetch.New(fetch.WithTimeout(timeout), fetch.WithUserAgent(f.userAgent))
	records, err := client.Fetch(ctx, url)
	if err != nil {
		log.Printf("api: fetch %s failed: %v", url, err)
		return nil, err
	}
	log.Printf("api: fetched %d records from %s", len(records), url)
	return records, nil
}

// configureRuntimeLogger sends the standard logger to path, or to stderr when
// path is empty or cannot be opened. The returned func closes the file.
func configureRuntimeLogger(path string) (func(), error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return func() {}, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return func() {}, fmt.Errorf("opening log file: %w", err)
	}

	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

func printStartupBanner(cfg appConfig) {
	fmt.Println(renderStartupBanner(cfg))
}

func renderStartupBanner(cfg appConfig) string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╗ ╦═╗╔═╗╔╗╔╔═╗╔═╗
    ╠╩╗╠╦╝║ ║║║║╔═╝║╣
    ╚═╝╩╚═╚═╝╝╚╝╚═╝╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Fetch Timeout  %s", check, dim.Render(cfg.Timeout.String())))
	if cfg.LogFile != "" {
		lines = append(lines, fmt.Sprintf("    %s  Log File       %s", check, dim.Render(shortenPath(cfg.LogFile))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Log File       %s", dot, dim.Render("stderr")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
