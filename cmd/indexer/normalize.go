package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pabloScope/internal/config"
	"pabloScope/internal/model"
	"pabloScope/internal/normalize"
	"pabloScope/internal/storage"
)

const normalizeBatchSize = 1000

func runNormalize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNormalize(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}
	for _, name := range cfg.Only {
		if !normalize.Supports(name) {
			return fmt.Errorf("unsupported event %q in --only", name)
		}
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	out := storage.NewJsonlStorage(cfg.Out)
	if err := out.Reset(); err != nil {
		return err
	}
	errs := storage.NewJsonlStorage(cfg.Errors)
	if err := errs.Reset(); err != nil {
		return err
	}

	logger.Info("normalize start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Strings("only", cfg.Only),
	)

	stats, err := normalizeStream(inputFile, cfg.Only, out, errs)
	if err != nil {
		return err
	}

	logger.Info("normalize complete",
		zap.Int("total", stats.total),
		zap.Int("normalized", stats.normalized),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return nil
}

type normalizeStats struct {
	total      int
	normalized int
	skipped    int
	failed     int
}

type eventSink interface {
	PutEvents(events []model.NormalizedEvent) error
}

// normalizeStream converts raw records to canonical events in input order.
// Records that fail are written to errs and do not stop the stream.
func normalizeStream(r io.Reader, only []string, out eventSink, errs storage.ErrorSink) (normalizeStats, error) {
	var stats normalizeStats

	keep := make(map[string]struct{}, len(only))
	for _, name := range only {
		keep[name] = struct{}{}
	}

	events := make([]model.NormalizedEvent, 0, normalizeBatchSize)
	failures := make([]model.EventError, 0, 64)
	flush := func() error {
		if err := out.PutEvents(events); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
		if err := errs.PutEventErrors(failures); err != nil {
			return fmt.Errorf("write errors: %w", err)
		}
		events = events[:0]
		failures = failures[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.total++

		var record model.RawEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.failed++
			failures = append(failures, model.EventError{Stage: "parse", Error: err.Error(), Line: lineNo})
			continue
		}

		if !normalize.Supports(record.Name) {
			stats.skipped++
			continue
		}
		if len(keep) > 0 {
			if _, ok := keep[record.Name]; !ok {
				stats.skipped++
				continue
			}
		}

		payload, err := normalize.Event(record)
		if err != nil {
			stats.failed++
			failures = append(failures, model.EventErrorFromRecord(record, "normalize", err))
			continue
		}

		events = append(events, model.NormalizedEvent{
			EventMeta:   record.Meta(),
			Kind:        payload.Kind(),
			SpecVersion: record.SpecVersion,
			Payload:     payload,
		})
		stats.normalized++

		if len(events) >= normalizeBatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
