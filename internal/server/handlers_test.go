package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/goctc/internal/ctc"
	"github.com/MeKo-Tech/goctc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{CORSOrigin: "*", MaxBodyMB: 1, CTC: ctc.DefaultConfig()}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) CTCResponse {
	t.Helper()
	var resp CTCResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Config{MaxBodyMB: 1})
	assert.Error(t, err)

	_, err = NewServer(Config{CTC: ctc.DefaultConfig()})
	assert.Error(t, err)

	s := newTestServer(t, nil)
	assert.Nil(t, s.rateLimiter)
	assert.Equal(t, int64(1<<20), s.maxBodyBytes)
	assert.Equal(t, 27, s.alphabet.Size())
	assert.NoError(t, s.Close())

	s = newTestServer(t, func(c *Config) { c.RateLimit.Enabled = true })
	assert.NotNil(t, s.rateLimiter)
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_AlphabetHandler(t *testing.T) {
	server := newTestServer(t, nil)

	w := httptest.NewRecorder()
	server.alphabetHandler(w, httptest.NewRequest(http.MethodGet, "/alphabet", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp AlphabetResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 27, resp.Size)
	assert.Equal(t, "0", resp.Blank)
	assert.Equal(t, 26, resp.BlankIndex)
	assert.Equal(t, "a", resp.Symbols[0])
	assert.Equal(t, "z", resp.Symbols[25])

	w = httptest.NewRecorder()
	server.alphabetHandler(w, httptest.NewRequest(http.MethodDelete, "/alphabet", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_ScoreHandler(t *testing.T) {
	server := newTestServer(t, nil)
	rows := testutil.Rows(t, map[rune]float64{'0': 0.6, 'a': 0.4})

	t.Run("with gradient", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := jsonBody(t, ScoreRequest{Label: "a", Emissions: rows, Gradient: true})
		server.scoreHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/score", body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeResponse(t, w)
		require.True(t, resp.Success)
		require.NotNil(t, resp.Result.Probability)
		assert.InDelta(t, 0.4, float64(*resp.Result.Probability), 1e-12)
		assert.Equal(t, "", resp.Result.BestPath)
		assert.Equal(t, 1, resp.Result.TimeSteps)
		require.Len(t, resp.Result.Gradient, 1)
		assert.InDelta(t, -2.5, float64(resp.Result.Gradient[0][0]), 1e-12)
	})

	t.Run("without gradient", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := jsonBody(t, ScoreRequest{Label: "ab", Emissions: testutil.PeakedPath(t, "aa0bb", 0.9).Rows()})
		server.scoreHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/score", body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeResponse(t, w)
		assert.Nil(t, resp.Result.Gradient)
		assert.Equal(t, "ab", resp.Result.BestPath)
		assert.Equal(t, 5, resp.Result.TimeSteps)
		assert.Greater(t, float64(*resp.Result.Probability), 0.0)
	})

	t.Run("logits", func(t *testing.T) {
		w := httptest.NewRecorder()
		logits := [][]float64{make([]float64, 27)}
		body := jsonBody(t, ScoreRequest{Label: "a", Emissions: logits, Logits: true})
		server.scoreHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/score", body))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decodeResponse(t, w)
		assert.InDelta(t, 1.0/27, float64(*resp.Result.Probability), 1e-12)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.scoreHandler(w, httptest.NewRequest(http.MethodGet, "/ctc/score", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestServer_ScoreHandler_Errors(t *testing.T) {
	oneA := map[rune]float64{'a': 1}

	tests := []struct {
		name       string
		mutate     func(*Config)
		body       func(t *testing.T) io.Reader
		wantStatus int
		wantType   string
	}{
		{
			name: "invalid json",
			body: func(*testing.T) io.Reader { return strings.NewReader("{") },
			wantStatus: http.StatusBadRequest, wantType: "invalid_request",
		},
		{
			name: "unknown symbol",
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "a!", Emissions: testutil.Rows(t, oneA)})
			},
			wantStatus: http.StatusBadRequest, wantType: "unknown_symbol",
		},
		{
			name: "row does not sum to one",
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "a", Emissions: testutil.Rows(t, map[rune]float64{'a': 0.5})})
			},
			wantStatus: http.StatusBadRequest, wantType: "malformed_emissions",
		},
		{
			name: "no emissions",
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "a"})
			},
			wantStatus: http.StatusBadRequest, wantType: "malformed_emissions",
		},
		{
			name: "infeasible alignment",
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "aa", Emissions: testutil.Rows(t, oneA, oneA)})
			},
			wantStatus: http.StatusUnprocessableEntity, wantType: "infeasible_alignment",
		},
		{
			name: "zero probability with gradient",
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "a", Emissions: testutil.Rows(t, map[rune]float64{'0': 1}), Gradient: true})
			},
			wantStatus: http.StatusUnprocessableEntity, wantType: "numerical_instability",
		},
		{
			name:   "too many steps",
			mutate: func(c *Config) { c.CTC.MaxTimeSteps = 1 },
			body: func(t *testing.T) io.Reader {
				return jsonBody(t, ScoreRequest{Label: "a", Emissions: testutil.Rows(t, oneA, oneA)})
			},
			wantStatus: http.StatusRequestEntityTooLarge, wantType: "too_large",
		},
		{
			name: "body too large",
			body: func(*testing.T) io.Reader {
				return strings.NewReader(strings.Repeat(" ", 2<<20) + "{}")
			},
			wantStatus: http.StatusRequestEntityTooLarge, wantType: "too_large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.mutate)
			w := httptest.NewRecorder()
			server.scoreHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/score", tt.body(t)))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantType, resp.ErrorType)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_ScoreHandler_NonStrictZeroProbability(t *testing.T) {
	server := newTestServer(t, func(c *Config) { c.CTC.Strict = false })
	oneA := map[rune]float64{'a': 1}

	w := httptest.NewRecorder()
	body := jsonBody(t, ScoreRequest{Label: "aa", Emissions: testutil.Rows(t, oneA, oneA), Gradient: true})
	server.scoreHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/score", body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Contains(t, w.Body.String(), `"neg_log_probability":"+Inf"`)
	assert.Contains(t, w.Body.String(), `"NaN"`)
}

func TestServer_DecodeHandler(t *testing.T) {
	server := newTestServer(t, nil)

	w := httptest.NewRecorder()
	body := jsonBody(t, DecodeRequest{Emissions: testutil.PeakedPath(t, "a0a", 0.9).Rows()})
	server.decodeHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/decode", body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeResponse(t, w)
	assert.Equal(t, "aa", resp.Result.BestPath)
	assert.Nil(t, resp.Result.Probability)

	w = httptest.NewRecorder()
	body = jsonBody(t, DecodeRequest{Emissions: [][]float64{{1}}})
	server.decodeHandler(w, httptest.NewRequest(http.MethodPost, "/ctc/decode", body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	server.decodeHandler(w, httptest.NewRequest(http.MethodPut, "/ctc/decode", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Routes(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/ctc/decode", "application/json",
		jsonBody(t, DecodeRequest{Emissions: testutil.PeakedPath(t, "ab", 0.9).Rows()}))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	metrics, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "goctc_http_requests_total")
	assert.Contains(t, string(metrics), `goctc_ctc_requests_total{op="decode",status="success"}`)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClassifyError(t *testing.T) {
	status, errType := classifyError(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", errType)

	status, errType = classifyError(&ctc.InfeasibleError{Steps: 1, MinSteps: 3})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "infeasible_alignment", errType)
}
