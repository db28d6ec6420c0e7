package triggers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zoobzio/chainz"
)

// Handler adapts a chain to an http.HandlerFunc.
//
// Each request becomes an HTTP context: query parameters and headers are
// flattened to their first value, a JSON object body is decoded when present,
// and a generated request_id is stamped on both the context and the
// X-Request-ID response header. The chain's result is rendered as a JSON
// envelope: a failed context replies 400 with
//
//	{"success": false, "error": "..."}
//
// and a healthy one replies 200 with
//
//	{"success": true, "data": ...}
//
// where data is the context's response payload when a link set one, or the
// full JSON-safe context otherwise.
func Handler(chain Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-ID", requestID)

		input := requestContext(r).With("request_id", requestID)
		result := chain.Run(r.Context(), input)

		if result.Failed() {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   result.Err().Error(),
			})
			return
		}

		data := any(result)
		if resp := result.Response(); resp != nil {
			data = resp
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    data,
		})
	}
}

// Mount registers the chain on the router for one method and path.
func Mount(r chi.Router, method, path string, chain Runner) {
	r.Method(method, path, Handler(chain))
}

func requestContext(r *http.Request) chainz.Ctx {
	query := make(map[string]string, len(r.URL.Query()))
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	// Non-JSON and empty bodies are tolerated; links that need a body can
	// validate for themselves.
	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
	}

	return chainz.NewHTTPContext(r.Method, r.URL.Path, query, body, headers)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck
}
