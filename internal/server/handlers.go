package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/emission"
	"github.com/MeKo-Tech/goctc/internal/report"
	"github.com/MeKo-Tech/goctc/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// alphabetHandler describes the symbol table the server scores against.
func (s *Server) alphabetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	symbols := s.alphabet.Symbols()
	names := make([]string, len(symbols))
	for i, sym := range symbols {
		names[i] = string(sym)
	}
	s.writeJSON(w, http.StatusOK, AlphabetResponse{
		Symbols:    names,
		Blank:      string(s.alphabet.BlankSymbol()),
		BlankIndex: s.alphabet.Blank(),
		Size:       s.alphabet.Size(),
	})
}

// scoreHandler computes P(label | emissions) and optionally the gradient.
func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScoreRequest
	if !s.readBody(w, r, &req) {
		return
	}

	res, err := s.score(req, "score")
	if err != nil {
		s.writeCTCError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CTCResponse{Success: true, Result: res})
}

// decodeHandler returns the best-path decode of the emissions.
func (s *Server) decodeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DecodeRequest
	if !s.readBody(w, r, &req) {
		return
	}

	res, err := s.decode(req, "decode")
	if err != nil {
		s.writeCTCError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CTCResponse{Success: true, Result: res})
}

// readBody decodes a size-limited JSON body into v. On failure it writes the
// error response and returns false.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength > 0 {
		requestBodyBytes.Observe(float64(r.ContentLength))
	}
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request body too large", "too_large", http.StatusRequestEntityTooLarge)
			return false
		}
		s.writeErrorResponse(w, "Invalid JSON body: "+err.Error(), "invalid_request", http.StatusBadRequest)
		return false
	}
	return true
}

// score runs one scoring request. op labels the metrics.
func (s *Server) score(req ScoreRequest, op string) (*report.Score, error) {
	start := time.Now()
	em, err := emission.Document{Emissions: req.Emissions, Logits: req.Logits}.Matrix()
	if err != nil {
		return nil, s.recordFailure(op, err)
	}
	cr, err := ctc.NewRequest(s.alphabet, req.Label, em, s.ctcConfig)
	if err != nil {
		return nil, s.recordFailure(op, err)
	}

	var out report.Score
	if req.Gradient {
		res, err := cr.Result()
		if err != nil {
			return nil, s.recordFailure(op, err)
		}
		out = report.FromResult(res, true)
	} else {
		out = report.Probability(cr.Label(), cr.Probability(), em.Steps())
		out.BestPath = cr.BestPath()
	}

	elapsed := time.Since(start)
	out.DurationMs = float64(elapsed.Microseconds()) / 1000
	ctcRequestsTotal.WithLabelValues(op, "success").Inc()
	ctcComputeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	ctcTimeSteps.WithLabelValues(op).Observe(float64(em.Steps()))
	ctcLabelLength.Observe(float64(len(cr.Extended()) / 2))
	slog.Debug("Scored label", "op", op, "steps", em.Steps(), "duration", elapsed)
	return &out, nil
}

// decode runs one decoding request. op labels the metrics.
func (s *Server) decode(req DecodeRequest, op string) (*report.Score, error) {
	start := time.Now()
	em, err := emission.Document{Emissions: req.Emissions, Logits: req.Logits}.Matrix()
	if err != nil {
		return nil, s.recordFailure(op, err)
	}
	path, err := ctc.Decode(s.alphabet, em, s.ctcConfig)
	if err != nil {
		return nil, s.recordFailure(op, err)
	}

	elapsed := time.Since(start)
	out := report.Decoded(path, em.Steps())
	out.DurationMs = float64(elapsed.Microseconds()) / 1000
	ctcRequestsTotal.WithLabelValues(op, "success").Inc()
	ctcComputeDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	ctcTimeSteps.WithLabelValues(op).Observe(float64(em.Steps()))
	return &out, nil
}

func (s *Server) recordFailure(op string, err error) error {
	_, errType := classifyError(err)
	ctcRequestsTotal.WithLabelValues(op, errType).Inc()
	return err
}

// classifyError maps core errors to an HTTP status and a stable error type.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ctc.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ctc.ErrInfeasibleAlignment):
		return http.StatusUnprocessableEntity, "infeasible_alignment"
	case errors.Is(err, ctc.ErrNumericalInstability):
		return http.StatusUnprocessableEntity, "numerical_instability"
	case errors.Is(err, alphabet.ErrUnknownSymbol):
		return http.StatusBadRequest, "unknown_symbol"
	case errors.Is(err, emission.ErrMalformed), errors.Is(err, emission.ErrEmpty):
		return http.StatusBadRequest, "malformed_emissions"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeCTCError(w http.ResponseWriter, err error) {
	status, errType := classifyError(err)
	if status == http.StatusInternalServerError {
		slog.Error("Scoring failed", "error", err)
	}
	s.writeErrorResponse(w, err.Error(), errType, status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes an error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	s.writeJSON(w, statusCode, CTCResponse{
		Success:   false,
		Error:     message,
		ErrorType: errType,
	})
}
