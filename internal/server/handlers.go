package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ricesearch/rice-syntax/internal/ast"
	apperrors "github.com/ricesearch/rice-syntax/internal/pkg/errors"
	"github.com/ricesearch/rice-syntax/internal/pkg/security"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// LanguagesResponse lists what the engine accepts.
type LanguagesResponse struct {
	Languages []string `json:"languages"`
	Functions []string `json:"functions"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// handleRPC decodes one envelope, dispatches it and writes the response
// envelope. A failed request carries the status of its error code.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, security.MaxRequestSize)

	var env worker.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		var tooLarge *http.MaxBytesError
		appErr := apperrors.InvalidRequestError("malformed envelope: " + err.Error())
		if errors.As(err, &tooLarge) {
			appErr = apperrors.ValidationError("request body too large")
		}
		writeJSON(w, appErr.HTTPStatus(), worker.Response{Err: appErr})
		return
	}

	resp := s.dispatcher.HandleEnvelope(r.Context(), env)
	status := http.StatusOK
	if resp.Err != nil {
		status = resp.Err.HTTPStatus()
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := make([]string, 0, len(ast.SupportedLanguages))
	for _, l := range ast.SupportedLanguages {
		langs = append(langs, l.String())
	}
	writeJSON(w, http.StatusOK, LanguagesResponse{
		Languages: langs,
		Functions: worker.Functions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers already sent
	_ = json.NewEncoder(w).Encode(v)
}
