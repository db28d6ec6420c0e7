package chainz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestLogging_EmitsContextRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging := Logging(logger)

	if logging.Name() != "logging" {
		t.Errorf("Expected name 'logging', got %s", logging.Name())
	}

	input := NewContext("http").With("user", "ada")
	result, err := logging.Process(context.Background(), input)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result) != len(input) {
		t.Error("Expected context passed through unchanged")
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "chain context" {
		t.Errorf("Expected 'chain context' message, got %v", record["msg"])
	}
	if record["trigger"] != "http" {
		t.Errorf("Expected trigger attribute, got %v", record["trigger"])
	}
	if record["failed"] != false {
		t.Errorf("Expected failed=false, got %v", record["failed"])
	}

	group, ok := record["context"].(map[string]any)
	if !ok {
		t.Fatalf("Expected context group, got %T", record["context"])
	}
	if group["user"] != "ada" {
		t.Errorf("Expected context keys in the group, got %v", group)
	}
}

func TestLogging_RendersErrorValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logging := Logging(logger)
	logging.Process(context.Background(), Ctx{}.WithError(errors.New("payment declined")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["failed"] != true {
		t.Errorf("Expected failed=true, got %v", record["failed"])
	}

	group := record["context"].(map[string]any)
	if group["error"] != "payment declined" {
		t.Errorf("Expected error rendered as its string form, got %v", group["error"])
	}
}

func TestLogging_NilLoggerUsesDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	logging := Logging(nil)
	logging.Process(context.Background(), Ctx{"user": "ada"})

	if buf.Len() == 0 {
		t.Error("Expected a record through the default logger")
	}
}
