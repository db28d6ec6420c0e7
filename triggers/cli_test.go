package triggers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/zoobzio/chainz"
)

func TestCommand_PrintsResultJSON(t *testing.T) {
	greet := chainz.Apply("greet", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data.With("greeting", "hello"), nil
	})
	chain := chainz.NewChain("greeter", greet)
	defer chain.Close()

	cmd := Command("greet [name]", chain)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"ada"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Expected command to succeed, got %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", out.String(), err)
	}
	if result["trigger"] != "cli" {
		t.Errorf("Expected cli trigger, got %v", result["trigger"])
	}
	if result["command"] != "greet" {
		t.Errorf("Expected command name from use string, got %v", result["command"])
	}
	args, _ := result["args"].([]any)
	if len(args) != 1 || args[0] != "ada" {
		t.Errorf("Expected args [ada], got %v", result["args"])
	}
	if result["greeting"] != "hello" {
		t.Errorf("Expected link output, got %v", result["greeting"])
	}
}

func TestCommand_FailureReturnsError(t *testing.T) {
	explode := chainz.Apply("explode", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data, errors.New("migration failed")
	})
	chain := chainz.NewChain("migrate", explode)
	defer chain.Close()

	cmd := Command("migrate", chain)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected error from failed chain")
	}
	if !strings.Contains(err.Error(), "migration failed") {
		t.Errorf("Expected cause in error, got %v", err)
	}
	// The result is still printed so the failure can be inspected.
	if !strings.Contains(out.String(), "migration failed") {
		t.Errorf("Expected error rendered in output, got %q", out.String())
	}
}

func TestCommand_NoArgs(t *testing.T) {
	var seen []string
	capture := chainz.Apply("capture", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		seen, _ = data["args"].([]string)
		return data, nil
	})
	chain := chainz.NewChain("status", capture)
	defer chain.Close()

	cmd := Command("status", chain)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Expected command to succeed, got %v", err)
	}
	if seen == nil || len(seen) != 0 {
		t.Errorf("Expected empty args slice, got %v", seen)
	}
}
