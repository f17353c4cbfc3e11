package sim

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/bnema/rigpilot/internal/adapters/remote/wire"
	"github.com/bnema/rigpilot/internal/domain"
)

// Handler serves the server over the same JSON API the HTTP client speaks.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+wire.SnapshotPath, s.handleSnapshot)
	mux.HandleFunc("POST "+wire.ActionPath, s.handleAction)
	return s.authorize(mux)
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.cfg.Token {
			writeError(w, http.StatusUnauthorized, &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.FetchSnapshot(r.Context())
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.SnapshotFromDomain(snapshot))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseActionKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, &domain.ActionError{Kind: domain.ErrorKindValidation, Detail: err.Error()})
		return
	}

	update, err := s.PerformAction(r.Context(), domain.RigID(r.PathValue("id")), kind)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.ActionResultFromDomain(update))
}

func writeActionError(w http.ResponseWriter, err error) {
	var actionErr *domain.ActionError
	if !errors.As(err, &actionErr) {
		actionErr = &domain.ActionError{Kind: domain.ErrorKindTransient, Detail: err.Error()}
	}
	writeError(w, wire.StatusFor(actionErr.Kind), actionErr)
}

func writeError(w http.ResponseWriter, status int, err *domain.ActionError) {
	if err.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(err.RetryAfter.Seconds()))))
	}
	writeJSON(w, status, wire.ErrorFromDomain(err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
