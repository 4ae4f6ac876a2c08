package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/petalplan/state"
)

func newTestServer(t *testing.T) (*Server, *state.SQLiteState) {
	t.Helper()
	backend, err := state.NewSQLiteState(state.SQLiteStateConfig{
		DSN: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteState: %v", err)
	}
	t.Cleanup(func() {
		_ = backend.Close()
	})
	srv := NewServer(ServerConfig{
		Backend: backend,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, backend
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPredicateEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/predicates", state.Predicate{Name: "at", Args: []string{"box1", "depot"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/predicates/exists?name=at&arg=box1&arg=depot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("exists status = %d", rec.Code)
	}
	if got := decodeJSON[map[string]bool](t, rec); !got["exists"] {
		t.Fatalf("exists = %v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/predicates", nil)
	predicates := decodeJSON[[]state.Predicate](t, rec)
	if len(predicates) != 1 || predicates[0].Name != "at" {
		t.Fatalf("list = %v", predicates)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/predicates/remove", state.Predicate{Name: "at", Args: []string{"box1", "depot"}})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/predicates/exists?name=at&arg=box1&arg=depot", nil)
	if got := decodeJSON[map[string]bool](t, rec); got["exists"] {
		t.Fatalf("predicate survived removal")
	}
}

func TestPredicateValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/predicates", state.Predicate{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFunctionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPut, "/v1/functions", state.Function{Name: "battery", Args: []string{"r2d2"}, Value: 90})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/functions?name=battery&arg=r2d2", nil)
	got := decodeJSON[map[string]any](t, rec)
	if got["found"] != true || got["value"] != 90.0 {
		t.Fatalf("lookup = %v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/functions", nil)
	functions := decodeJSON[[]state.Function](t, rec)
	if len(functions) != 1 || functions[0].Value != 90 {
		t.Fatalf("list = %v", functions)
	}
}

func TestObjectEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, name := range []string{"box1", "depot"} {
		rec := doJSON(t, h, http.MethodPost, "/v1/objects", map[string]string{"name": name})
		if rec.Code != http.StatusCreated {
			t.Fatalf("add object status = %d", rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/objects", nil)
	got := decodeJSON[map[string][]string](t, rec)
	if len(got["objects"]) != 2 {
		t.Fatalf("objects = %v", got)
	}
}

func TestCheckAndApplyEndpoints(t *testing.T) {
	ctx := context.Background()
	srv, backend := newTestServer(t)
	h := srv.Handler()

	_ = backend.AddPredicate(ctx, state.Predicate{Name: "at", Args: []string{"box1", "depot"}})

	rec := doJSON(t, h, http.MethodPost, "/v1/check", map[string]string{"expression": "(at box1 depot)"})
	if rec.Code != http.StatusOK {
		t.Fatalf("check status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decodeJSON[evaluateResponse](t, rec)
	if !res.Success || !res.Truth {
		t.Fatalf("check = %+v", res)
	}
	if res.Expression != "(at box1 depot)" {
		t.Fatalf("canonical expression = %q", res.Expression)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/apply", map[string]string{"expression": "(not (at box1 depot))"})
	res = decodeJSON[evaluateResponse](t, rec)
	if !res.Success {
		t.Fatalf("apply = %+v", res)
	}

	exists, err := backend.ExistsPredicate(ctx, state.Predicate{Name: "at", Args: []string{"box1", "depot"}})
	if err != nil || exists {
		t.Fatalf("apply did not retract the fact: %v, %v", exists, err)
	}
}

func TestCheckRejectsMalformedExpression(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/check", map[string]string{"expression": "(and (at box1)"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	envelope := decodeJSON[apiError](t, rec)
	if envelope.Error.Code != "PARSE_ERROR" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestCheckExercisesQuantifier(t *testing.T) {
	ctx := context.Background()
	srv, backend := newTestServer(t)

	_ = backend.AddObject(ctx, "box1", "box")
	_ = backend.AddObject(ctx, "box2", "box")
	_ = backend.AddObject(ctx, "depot", "location")
	_ = backend.AddPredicate(ctx, state.Predicate{Name: "at", Args: []string{"box2", "depot"}})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/check", map[string]string{
		"expression": "(exists (?b - box) (at ?b depot))",
	})
	res := decodeJSON[evaluateResponse](t, rec)
	if !res.Success || !res.Truth {
		t.Fatalf("quantified check = %+v", res)
	}
}

func TestMaxBodyLimit(t *testing.T) {
	backend, err := state.NewSQLiteState(state.SQLiteStateConfig{
		DSN: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteState: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	srv := NewServer(ServerConfig{
		Backend: backend,
		MaxBody: 64,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	big := map[string]string{"expression": "(at " + strings.Repeat("x", 256) + " depot)"}
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/check", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}
