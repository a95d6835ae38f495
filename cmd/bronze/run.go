package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tinytelemetry/bronze/internal/bronze"
	"github.com/tinytelemetry/bronze/internal/fetch"
	"github.com/tinytelemetry/bronze/internal/model"
)

// runOnce fetches cfg.URL, prepares bronze rows and writes them out.
// Nothing is written unless both stages succeed.
func runOnce(cfg appConfig) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rows, err := ingest(ctx, cfg, newFetchClient(cfg), bronze.NewPreparer())
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		return encodeRows(os.Stdout, cfg.Format, rows)
	}
	return writeOutputFile(cfg.Output, cfg.Format, rows)
}

func newFetchClient(cfg appConfig) *fetch.Client {
	return fetch.New(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent("bronze/"+version),
	)
}

type recordFetcher interface {
	Fetch(ctx context.Context, url string) ([]model.Record, error)
}

// ingest composes the two stages: fetch, then prepare.
func ingest(ctx context.Context, cfg appConfig, fetcher recordFetcher, preparer *bronze.Preparer) ([]model.BronzeRow, error) {
	records, err := fetcher.Fetch(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	log.Printf("fetched %d records from %s", len(records), cfg.URL)

	rows, err := preparer.Prepare(records, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("preparing bronze rows: %w", err)
	}
	if len(rows) > 0 {
		log.Printf("prepared %d rows (source=%s batch=%s)", len(rows), cfg.Source, rows[0].BatchID)
	}
	return rows, nil
}

func encodeRows(out io.Writer, format string, rows []model.BronzeRow) error {
	bw := bufio.NewWriter(out)
	if err := writeRows(bw, format, rows); err != nil {
		return err
	}
	return bw.Flush()
}

// writeOutputFile replaces path with the encoded rows through a temp file in
// the same directory, so a failed write leaves the previous batch intact.
func writeOutputFile(path, format string, rows []model.BronzeRow) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := encodeRows(tmp, format, rows); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting output mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing output: %w", err)
	}
	committed = true
	return nil
}
