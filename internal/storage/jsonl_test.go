package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pabloScope/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestJsonlStorageAppendAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "errors.jsonl")
	sink := NewJsonlStorage(path)

	if err := sink.PutEventErrors([]model.EventError{{EventID: "e1", Stage: "apply", Error: "pool not found"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := sink.PutEventErrors([]model.EventError{{EventID: "e2", Stage: "normalize", Error: "bad"}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec model.EventError
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.EventID != "e2" || rec.Stage != "normalize" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := sink.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 0 {
		t.Fatalf("expected empty file after reset, got %d lines", len(lines))
	}
}

func TestJsonlStorageEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	if err := NewJsonlStorage(path).PutEvents(nil); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch should not create the file")
	}
}
