package chainz

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

func registryChain(name Name) *Chain {
	return NewChain(name, Apply("noop", func(_ context.Context, ctx Ctx) (Ctx, error) {
		return ctx, nil
	}))
}

func TestRegistry_NewRegistry(t *testing.T) {
	opts := Options{Environment: "staging", EnableLogging: false}
	reg := NewRegistry(opts)

	if reg.Options() != opts {
		t.Errorf("Expected options carried, got %+v", reg.Options())
	}
	if len(reg.ChainNames()) != 0 || len(reg.LinkNames()) != 0 {
		t.Error("Expected empty registry")
	}
}

func TestRegistry_RegisterChain_Lookup(t *testing.T) {
	reg := NewRegistry(Options{})
	chain := registryChain("signup")

	reg.RegisterChain("signup", chain)

	got, ok := reg.Chain("signup")
	if !ok {
		t.Fatal("Expected registered chain found")
	}
	if got != chain {
		t.Error("Expected the same chain instance back")
	}

	if _, ok := reg.Chain("missing"); ok {
		t.Error("Expected missing chain to report false")
	}
}

func TestRegistry_RegisterChain_NilPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for nil chain")
		}
	}()

	NewRegistry(Options{}).RegisterChain("broken", nil)
}

func TestRegistry_RegisterChain_Replaces(t *testing.T) {
	reg := NewRegistry(Options{})
	first := registryChain("signup")
	second := registryChain("signup")

	reg.RegisterChain("signup", first)
	reg.RegisterChain("signup", second)

	got, _ := reg.Chain("signup")
	if got != second {
		t.Error("Expected later registration to win")
	}
	if len(reg.ChainNames()) != 1 {
		t.Errorf("Expected single entry, got %v", reg.ChainNames())
	}
}

func TestRegistry_RegisterLink_Lookup(t *testing.T) {
	reg := NewRegistry(Options{})
	link := Apply("greet", func(_ context.Context, ctx Ctx) (Ctx, error) {
		return ctx.With("greeting", "hello"), nil
	})

	reg.RegisterLink("greet", link)

	got, ok := reg.Link("greet")
	if !ok {
		t.Fatal("Expected registered link found")
	}
	result, err := got.Process(context.Background(), Ctx{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.String("greeting") != "hello" {
		t.Error("Expected the registered link to run")
	}

	if _, ok := reg.Link("missing"); ok {
		t.Error("Expected missing link to report false")
	}
}

func TestRegistry_RegisterLink_NilPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for nil link")
		}
	}()

	NewRegistry(Options{}).RegisterLink("broken", nil)
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.RegisterChain("billing", registryChain("billing"))
	reg.RegisterChain("audit", registryChain("audit"))
	reg.RegisterChain("signup", registryChain("signup"))

	if got := reg.ChainNames(); !reflect.DeepEqual(got, []Name{"audit", "billing", "signup"}) {
		t.Errorf("Expected sorted chain names, got %v", got)
	}

	noop := Apply("noop", func(_ context.Context, ctx Ctx) (Ctx, error) { return ctx, nil })
	reg.RegisterLink("zeta", noop)
	reg.RegisterLink("alpha", noop)

	if got := reg.LinkNames(); !reflect.DeepEqual(got, []Name{"alpha", "zeta"}) {
		t.Errorf("Expected sorted link names, got %v", got)
	}
}

func TestRegistry_LogsRegistrations(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reg := NewRegistry(Options{Environment: "production", EnableLogging: true}).WithLogger(logger)
	reg.RegisterChain("signup", registryChain("signup"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "chain registered" {
		t.Errorf("Expected registration record, got %v", record["msg"])
	}
	if record["name"] != "signup" {
		t.Errorf("Expected name attribute, got %v", record["name"])
	}
	if record["environment"] != "production" {
		t.Errorf("Expected environment attribute, got %v", record["environment"])
	}

	buf.Reset()
	reg.RegisterLink("greet", Apply("greet", func(_ context.Context, ctx Ctx) (Ctx, error) { return ctx, nil }))

	if !strings.Contains(buf.String(), "link registered") {
		t.Errorf("Expected link registration record, got %q", buf.String())
	}
}

func TestRegistry_SilentWhenLoggingDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reg := NewRegistry(Options{EnableLogging: false}).WithLogger(logger)
	reg.RegisterChain("signup", registryChain("signup"))
	reg.RegisterLink("greet", Apply("greet", func(_ context.Context, ctx Ctx) (Ctx, error) { return ctx, nil }))

	if buf.Len() != 0 {
		t.Errorf("Expected no records with logging disabled, got %q", buf.String())
	}
}

func TestRegistry_WithLogger_NilKeepsCurrent(t *testing.T) {
	reg := NewRegistry(Options{EnableLogging: true})

	if reg.WithLogger(nil) != reg {
		t.Error("Expected fluent return of the same registry")
	}

	// Still usable after a nil logger.
	reg.RegisterChain("signup", registryChain("signup"))
	if _, ok := reg.Chain("signup"); !ok {
		t.Error("Expected registration to work")
	}
}

func TestRegistry_Close(t *testing.T) {
	reg := NewRegistry(Options{})
	reg.RegisterChain("a", registryChain("a"))
	reg.RegisterChain("b", registryChain("b"))

	if err := reg.Close(); err != nil {
		t.Errorf("Expected clean close, got %v", err)
	}
}
