package server

import (
	"errors"
	"net/http"

	"github.com/MeKo-Tech/goctc/internal/alphabet"
	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies. It keeps no state
// between requests apart from rate limiting counters.
type Server struct {
	alphabet     *alphabet.Alphabet
	ctcConfig    ctc.Config
	corsOrigin   string
	maxBodyBytes int64
	rateLimiter  *RateLimiter
}

// Config holds server configuration.
type Config struct {
	CORSOrigin string
	MaxBodyMB  int64
	// Alphabet defaults to alphabet.Default() when nil.
	Alphabet  *alphabet.Alphabet
	CTC       ctc.Config
	RateLimit RateLimitConfig
}

// ScoreRequest is the body of POST /ctc/score.
type ScoreRequest struct {
	Label     string      `json:"label"`
	Emissions [][]float64 `json:"emissions"`
	Logits    bool        `json:"logits,omitempty"`
	Gradient  bool        `json:"gradient,omitempty"`
}

// DecodeRequest is the body of POST /ctc/decode.
type DecodeRequest struct {
	Emissions [][]float64 `json:"emissions"`
	Logits    bool        `json:"logits,omitempty"`
}

// CTCResponse wraps a scoring or decoding result.
type CTCResponse struct {
	Success   bool          `json:"success"`
	Result    *report.Score `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// AlphabetResponse is returned by GET /alphabet.
type AlphabetResponse struct {
	Symbols    []string `json:"symbols"`
	Blank      string   `json:"blank"`
	BlankIndex int      `json:"blank_index"`
	Size       int      `json:"size"`
}

// NewServer creates a new scoring server instance.
func NewServer(config Config) (*Server, error) {
	if config.CTC.RowSumTolerance <= 0 {
		return nil, errors.New("row sum tolerance must be positive")
	}
	if config.MaxBodyMB <= 0 {
		return nil, errors.New("max body size must be positive")
	}
	ab := config.Alphabet
	if ab == nil {
		ab = alphabet.Default()
	}

	s := &Server{
		alphabet:     ab,
		ctcConfig:    config.CTC,
		corsOrigin:   config.CORSOrigin,
		maxBodyBytes: config.MaxBodyMB * 1024 * 1024,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/alphabet", s.corsMiddleware(s.alphabetHandler))
	mux.HandleFunc("/ctc/score", s.corsMiddleware(s.rateLimitMiddleware(s.scoreHandler)))
	mux.HandleFunc("/ctc/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	mux.HandleFunc("/ws/ctc", s.rateLimitMiddleware(s.ctcWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
