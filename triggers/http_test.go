package triggers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zoobzio/chainz"
)

type envelope struct {
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
	Success bool           `json:"success"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Expected JSON envelope, got %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestHandler_SuccessEnvelope(t *testing.T) {
	mark := chainz.Apply("mark", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data.With("handled", true), nil
	})
	chain := chainz.NewChain("api", mark)
	defer chain.Close()

	req := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	rec := httptest.NewRecorder()
	Handler(chain)(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected application/json, got %q", got)
	}

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("Expected success envelope")
	}
	if env.Data["method"] != http.MethodGet || env.Data["path"] != "/users/42" {
		t.Errorf("Expected request stamps in data, got %+v", env.Data)
	}
	if env.Data["handled"] != true {
		t.Error("Expected link output in data")
	}
	if env.Data["trigger"] != "http" {
		t.Errorf("Expected http trigger, got %v", env.Data["trigger"])
	}
}

func TestHandler_ResponsePayloadWins(t *testing.T) {
	respond := chainz.Apply("respond", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data.WithResponse(chainz.Ctx{"greeting": "hello"}), nil
	})
	chain := chainz.NewChain("api", respond)
	defer chain.Close()

	rec := httptest.NewRecorder()
	Handler(chain)(rec, httptest.NewRequest(http.MethodGet, "/greet", nil))

	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("Expected success envelope")
	}
	if len(env.Data) != 1 || env.Data["greeting"] != "hello" {
		t.Errorf("Expected bare response payload, got %+v", env.Data)
	}
}

func TestHandler_ErrorEnvelope(t *testing.T) {
	explode := chainz.Apply("explode", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data, errors.New("database offline")
	})
	chain := chainz.NewChain("api", explode)
	defer chain.Close()

	rec := httptest.NewRecorder()
	Handler(chain)(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("Expected failure envelope")
	}
	if !strings.Contains(env.Error, "database offline") {
		t.Errorf("Expected cause in error, got %q", env.Error)
	}
}

func TestHandler_RequestIDStamped(t *testing.T) {
	var seen string
	capture := chainz.Apply("capture", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		seen = data.String("request_id")
		return data, nil
	})
	chain := chainz.NewChain("api", capture)
	defer chain.Close()

	rec := httptest.NewRecorder()
	Handler(chain)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("Expected X-Request-ID header")
	}
	if seen != header {
		t.Errorf("Expected chain to see request id %q, got %q", header, seen)
	}
}

func TestHandler_FlattensQueryAndHeaders(t *testing.T) {
	var query, headers map[string]string
	capture := chainz.Apply("capture", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		query, _ = data["query"].(map[string]string)
		headers, _ = data["headers"].(map[string]string)
		return data, nil
	})
	chain := chainz.NewChain("api", capture)
	defer chain.Close()

	req := httptest.NewRequest(http.MethodGet, "/search?q=first&q=second&page=2", nil)
	req.Header.Set("X-Tenant", "acme")
	rec := httptest.NewRecorder()
	Handler(chain)(rec, req)

	if query["q"] != "first" || query["page"] != "2" {
		t.Errorf("Expected first-value query flattening, got %+v", query)
	}
	if headers["X-Tenant"] != "acme" {
		t.Errorf("Expected header in context, got %+v", headers)
	}
}

func TestHandler_DecodesJSONBody(t *testing.T) {
	var body map[string]any
	capture := chainz.Apply("capture", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		body, _ = data["body"].(map[string]any)
		return data, nil
	})
	chain := chainz.NewChain("api", capture)
	defer chain.Close()

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"ada@example.com"}`))
	rec := httptest.NewRecorder()
	Handler(chain)(rec, req)

	if body["email"] != "ada@example.com" {
		t.Errorf("Expected decoded body, got %+v", body)
	}
}

func TestHandler_ToleratesNonJSONBody(t *testing.T) {
	chain := chainz.NewChain("api")
	defer chain.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader("not json at all"))
	rec := httptest.NewRecorder()
	Handler(chain)(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for non-JSON body, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("Expected success envelope")
	}
}

func TestMount_RegistersRoute(t *testing.T) {
	greet := chainz.Apply("greet", func(_ context.Context, data chainz.Ctx) (chainz.Ctx, error) {
		return data.WithResponse(chainz.Ctx{"greeting": "hello"}), nil
	})
	chain := chainz.NewChain("api", greet)
	defer chain.Close()

	router := chi.NewRouter()
	Mount(router, http.MethodGet, "/greet", chain)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/greet", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected mounted route to serve 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/greet", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for wrong method, got %d", rec.Code)
	}
}
