package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/petal-labs/petalplan/cond"
	"github.com/petal-labs/petalplan/state"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListPredicates returns every currently held fact.
func (s *Server) handleListPredicates(w http.ResponseWriter, r *http.Request) {
	predicates, err := s.backend.Predicates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if predicates == nil {
		predicates = []state.Predicate{}
	}
	writeJSON(w, http.StatusOK, predicates)
}

// handleAddPredicate asserts a fact. Asserting a held fact is a no-op.
func (s *Server) handleAddPredicate(w http.ResponseWriter, r *http.Request) {
	var p state.Predicate
	if !decodeBody(w, r, &p) {
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PREDICATE", "predicate name is required")
		return
	}
	if err := s.backend.AddPredicate(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleRemovePredicate retracts a fact. Retracting an absent fact is a no-op.
func (s *Server) handleRemovePredicate(w http.ResponseWriter, r *http.Request) {
	var p state.Predicate
	if !decodeBody(w, r, &p) {
		return
	}
	if err := s.backend.RemovePredicate(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExistsPredicate reports whether the queried fact holds.
func (s *Server) handleExistsPredicate(w http.ResponseWriter, r *http.Request) {
	p := factFromQuery(r)
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_PREDICATE", "name query parameter is required")
		return
	}
	exists, err := s.backend.ExistsPredicate(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// handleGetFunctions serves both a single fluent lookup (when the name
// query parameter is set) and the full fluent listing.
func (s *Server) handleGetFunctions(w http.ResponseWriter, r *http.Request) {
	ref := factFromQuery(r)
	if ref.Name != "" {
		value, found, err := s.backend.Function(r.Context(), ref)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"found": found, "value": value})
		return
	}

	functions, err := s.backend.Functions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if functions == nil {
		functions = []state.Function{}
	}
	writeJSON(w, http.StatusOK, functions)
}

// handleUpdateFunction upserts a fluent value.
func (s *Server) handleUpdateFunction(w http.ResponseWriter, r *http.Request) {
	var f state.Function
	if !decodeBody(w, r, &f) {
		return
	}
	if f.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_FUNCTION", "function name is required")
		return
	}
	if err := s.backend.UpdateFunction(r.Context(), f); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleListObjects returns the declared object universe.
func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	objects, err := s.backend.Objects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if objects == nil {
		objects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"objects": objects})
}

// handleAddObject declares an object.
func (s *Server) handleAddObject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Type string `json:"type,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "INVALID_OBJECT", "object name is required")
		return
	}
	if err := s.backend.AddObject(r.Context(), body.Name, body.Type); err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

// evaluateRequest is the body of check and apply requests.
type evaluateRequest struct {
	Expression string `json:"expression"`
}

// evaluateResponse echoes the canonical expression text next to the result.
type evaluateResponse struct {
	Expression string  `json:"expression"`
	Success    bool    `json:"success"`
	Truth      bool    `json:"truth"`
	Value      float64 `json:"value"`
}

// handleCheck evaluates a condition read-only.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.handleEvaluate(w, r, false)
}

// handleApply evaluates a condition and commits its effects.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	s.handleEvaluate(w, r, true)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, apply bool) {
	spanName := "petalplan.check"
	if apply {
		spanName = "petalplan.apply"
	}
	ctx, span := s.tracer.Start(r.Context(), spanName)
	defer span.End()

	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Expression == "" {
		writeError(w, http.StatusBadRequest, "INVALID_EXPRESSION", "expression is required")
		return
	}
	span.SetAttributes(attribute.String("petalplan.expression", req.Expression))

	c, err := cond.Parse(req.Expression, nil)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		writeError(w, http.StatusUnprocessableEntity, "PARSE_ERROR", err.Error())
		return
	}
	t, root := cond.Lower(c, nil)

	res := s.evaluator.Evaluate(ctx, &t, root, apply)
	if !res.Success {
		span.SetStatus(codes.Error, "evaluation failed")
	}
	span.SetAttributes(
		attribute.Bool("petalplan.success", res.Success),
		attribute.Bool("petalplan.truth", res.Truth),
	)

	writeJSON(w, http.StatusOK, evaluateResponse{
		Expression: condText(c),
		Success:    res.Success,
		Truth:      res.Truth,
		Value:      res.Value,
	})
}

// condText renders the canonical text of a parsed condition. A nil
// condition (the empty body) prints as "()".
func condText(c cond.Condition) string {
	if c == nil {
		return "()"
	}
	return c.String()
}

// factFromQuery builds a fact identity from name and arg query parameters.
func factFromQuery(r *http.Request) state.Predicate {
	q := r.URL.Query()
	return state.Predicate{Name: q.Get("name"), Args: q["arg"]}
}

// decodeBody decodes a JSON request body, writing the error response
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isMaxBytesError(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds size limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "PARSE_ERROR", fmt.Sprintf("decoding request body: %v", err))
		return false
	}
	return true
}

func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
