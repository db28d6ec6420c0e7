package triggers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/robfig/cron/v3"

	"github.com/zoobzio/chainz"
)

func TestSchedule_RunsChainOnTick(t *testing.T) {
	var seen chainz.Ctx
	capture := chainz.Apply("capture", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		seen = data.Copy()
		return data, nil
	})
	chain := chainz.NewChain("nightly", capture)
	defer chain.Close()

	runner := cron.New()
	id, err := Schedule(runner, "@every 1h", chain, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("Expected schedule to register, got %v", err)
	}

	// Fire the job directly instead of waiting for the wall clock.
	runner.Entry(id).Job.Run()

	if seen == nil {
		t.Fatal("Expected chain to run")
	}
	if seen.String("trigger") != "cron" {
		t.Errorf("Expected cron trigger, got %q", seen.String("trigger"))
	}
	if seen.String("schedule") != "@every 1h" {
		t.Errorf("Expected schedule stamp, got %q", seen.String("schedule"))
	}
	if seen.String("scheduled_at") == "" {
		t.Error("Expected scheduled_at stamp")
	}
}

func TestSchedule_InvalidSpecErrors(t *testing.T) {
	chain := chainz.NewChain("nightly")
	defer chain.Close()

	if _, err := Schedule(cron.New(), "not a schedule", chain, nil); err == nil {
		t.Error("Expected error for invalid cron spec")
	}
}

func TestSchedule_LogsFailureAtWarn(t *testing.T) {
	explode := chainz.Apply("explode", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data, errors.New("report generation failed")
	})
	chain := chainz.NewChain("nightly", explode)
	defer chain.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	runner := cron.New()
	id, err := Schedule(runner, "@daily", chain, logger)
	if err != nil {
		t.Fatalf("Expected schedule to register, got %v", err)
	}
	runner.Entry(id).Job.Run()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected one log record, got %q: %v", buf.String(), err)
	}
	if record["level"] != "WARN" {
		t.Errorf("Expected WARN level, got %v", record["level"])
	}
	if record["msg"] != "scheduled chain failed" {
		t.Errorf("Expected failure message, got %v", record["msg"])
	}
	if record["chain"] != "nightly" || record["schedule"] != "@daily" {
		t.Errorf("Expected chain and schedule attrs, got %+v", record)
	}
	errAttr, _ := record["error"].(string)
	if !strings.Contains(errAttr, "report generation failed") {
		t.Errorf("Expected cause in error attr, got %q", errAttr)
	}
}

func TestSchedule_LogsCompletion(t *testing.T) {
	chain := chainz.NewChain("nightly")
	defer chain.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	runner := cron.New()
	id, err := Schedule(runner, "@hourly", chain, logger)
	if err != nil {
		t.Fatalf("Expected schedule to register, got %v", err)
	}
	runner.Entry(id).Job.Run()

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected one log record, got %q: %v", buf.String(), err)
	}
	if record["level"] != "INFO" || record["msg"] != "scheduled chain completed" {
		t.Errorf("Expected completion record, got %+v", record)
	}
}
