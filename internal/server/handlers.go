package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/stackrank/pkg/compare"
	"github.com/matzehuels/stackrank/pkg/ecosystem"
	apperrors "github.com/matzehuels/stackrank/pkg/errors"
	"github.com/matzehuels/stackrank/pkg/orchestrator"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// packagesRequest is the body of session create and update calls.
type packagesRequest struct {
	Packages  []string `json:"packages"`
	Ecosystem string   `json:"ecosystem,omitempty"`
	Refresh   string   `json:"refresh,omitempty"`
}

type refetchRequest struct {
	Package string `json:"package,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

type pruneResponse struct {
	Removed  []string              `json:"removed"`
	Snapshot orchestrator.Snapshot `json:"snapshot"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"sessions":   s.sessions.len(),
		"sourceHost": s.orch.HasSourceHost(),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reqs, err := parseRequests(q["pkg"], q.Get("ecosystem"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scope, err := parseRefresh(q.Get("refresh"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()
	snap, err := s.orch.Compare(ctx, reqs, orchestrator.WithRefresh(scope))
	if err != nil {
		// Past the wait timeout, packages that did load are still worth
		// returning; the snapshot's loading flags mark the rest.
		if r.Context().Err() == nil && len(snap.Results()) > 0 {
			s.logger.Warn("compare timed out, returning partial snapshot", "loaded", len(snap.Results()), "requested", len(reqs))
			writeJSON(w, http.StatusOK, snap)
			return
		}
		s.writeError(w, r, orchestrator.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("a") == "" || q.Get("b") == "" {
		s.writeError(w, r, badRequest("both a and b are required"))
		return
	}
	reqs, err := parseRequests([]string{q.Get("a"), q.Get("b")}, q.Get("ecosystem"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if reqs[0].Key() == reqs[1].Key() {
		s.writeError(w, r, badRequest("cannot compare %s with itself", reqs[0]))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
	defer cancel()
	snap, err := s.orch.Compare(ctx, reqs)
	if err != nil {
		s.writeError(w, r, orchestrator.Classify(err))
		return
	}
	var resolved [2]*stats.PackageStats
	for i, req := range reqs {
		st, _ := snap.Package(req)
		if st.Error != nil {
			s.writeError(w, r, st.Error.Err)
			return
		}
		resolved[i] = st.Stats
	}
	writeJSON(w, http.StatusOK, compare.Compare(resolved[0], resolved[1]))
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeUnsupported, "suggestions are not configured"))
		return
	}
	q := r.URL.Query()
	eco, err := stats.ParseEcosystem(q.Get("ecosystem"))
	if err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInvalidEcosystem, err, "%v", err))
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.writeError(w, r, badRequest("invalid limit %q", v))
			return
		}
	}

	out, err := s.catalog.Suggest(r.Context(), eco, q.Get("q"), limit)
	if err != nil {
		s.writeError(w, r, orchestrator.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body packagesRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reqs, err := parseRequests(body.Packages, body.Ecosystem)
	if err != nil && !errors.Is(err, errNoPackages) {
		s.writeError(w, r, err)
		return
	}
	scope, err := parseRefresh(body.Refresh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := s.orch.NewSession(r.Context(), orchestrator.WithRefresh(scope))
	sess.SetPackages(reqs)
	s.sessions.put(sess)
	s.logger.Debug("session created", "id", sess.ID, "packages", len(reqs))

	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, s.snapshot(r, sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.snapshot(r, sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		s.writeError(w, r, sessionNotFound(chi.URLParam(r, "id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetPackages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body packagesRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	reqs, err := parseRequests(body.Packages, body.Ecosystem)
	if err != nil && !errors.Is(err, errNoPackages) {
		s.writeError(w, r, err)
		return
	}
	sess.SetPackages(reqs)
	writeJSON(w, http.StatusOK, s.snapshot(r, sess))
}

func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body refetchRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	scope, err := orchestrator.ParseScope(body.Scope)
	if err != nil {
		s.writeError(w, r, badRequest("%v", err))
		return
	}

	if body.Package == "" {
		err = sess.RefetchAll(r.Context(), scope)
	} else {
		var req ecosystem.Request
		req, err = ecosystem.ParseRequest(body.Package, "")
		if err != nil {
			s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInvalidPackage, err, "%v", err))
			return
		}
		err = sess.Refetch(r.Context(), req, scope)
	}
	if errors.Is(err, orchestrator.ErrUnknownPackage) {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeNotFound, err, "%s is not part of the session", body.Package))
		return
	}
	if err != nil {
		s.writeError(w, r, orchestrator.Classify(err))
		return
	}
	writeJSON(w, http.StatusAccepted, s.snapshot(r, sess))
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	removed := sess.PruneNotFound()
	keys := make([]string, len(removed))
	for i, req := range removed {
		keys[i] = req.Key()
	}
	writeJSON(w, http.StatusOK, pruneResponse{Removed: keys, Snapshot: sess.Snapshot()})
}

// =============================================================================
// Helpers
// =============================================================================

var errNoPackages = badRequest("at least one package is required")

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*orchestrator.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.get(id)
	if !ok {
		s.writeError(w, r, sessionNotFound(id))
	}
	return sess, ok
}

// snapshot returns the session state, first waiting for in-flight fetches
// when the request asks for it with ?wait=true.
func (s *Server) snapshot(r *http.Request, sess *orchestrator.Session) orchestrator.Snapshot {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
		defer cancel()
		_ = sess.Wait(ctx)
	}
	return sess.Snapshot()
}

func sessionNotFound(id string) error {
	return apperrors.New(apperrors.ErrCodeSessionNotFound, "session %q not found", id)
}

func parseRequests(raw []string, defaultEcosystem string) ([]ecosystem.Request, error) {
	if len(raw) == 0 {
		return nil, errNoPackages
	}
	var def stats.Ecosystem
	if defaultEcosystem != "" {
		eco, err := stats.ParseEcosystem(defaultEcosystem)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidEcosystem, err, "%v", err)
		}
		def = eco
	}
	reqs := make([]ecosystem.Request, 0, len(raw))
	for _, s := range raw {
		req, err := ecosystem.ParseRequest(s, def)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeInvalidPackage, err, "%v", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func parseRefresh(s string) (orchestrator.Scope, error) {
	if s == "" {
		return 0, nil
	}
	scope, err := orchestrator.ParseScope(s)
	if err != nil {
		return 0, badRequest("%v", err)
	}
	return scope, nil
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid request body: %v", err)
	}
	return nil
}
