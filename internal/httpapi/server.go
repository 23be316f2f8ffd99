// Package httpapi exposes POT and livetime queries over HTTP for run
// coordination tooling.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dalagero/SBND-RunCo/internal/health"
	"github.com/dalagero/SBND-RunCo/internal/ifbeam"
	"github.com/dalagero/SBND-RunCo/internal/livetime"
	"github.com/dalagero/SBND-RunCo/internal/logging"
)

const maxRequestBodyBytes int64 = 1 << 20 // 1 MiB

// Computer runs livetime computations; the livetime.Engine satisfies it.
type Computer interface {
	Compute(ctx context.Context, t0, t1 time.Time, daq []livetime.Interval) (livetime.Report, error)
}

type Server struct {
	log    *logging.Logger
	src    livetime.POTSource
	engine Computer
	r      chi.Router
}

func NewServer(log *logging.Logger, src livetime.POTSource, engine Computer) *Server {
	s := &Server{log: log, src: src, engine: engine, r: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) Router() http.Handler { return s.r }

func (s *Server) routes() {
	s.r.Use(middleware.RequestID)
	s.r.Use(s.loggingMiddleware)
	s.r.Get("/healthz", s.handleHealth)
	s.r.Get("/readyz", s.handleReady)
	s.r.Route("/v1", func(r chi.Router) {
		r.Get("/pot", s.handlePOT)
		r.Post("/livetime", s.handleLivetime)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		logger := s.log.WithRequestID(reqID)
		ctx := logging.ContextWithLogger(r.Context(), logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := health.ReadyCheck(ctx, s.src); err != nil {
		logging.FromContext(r.Context(), s.log).Error("readyz failed", "error", err.Error())
		writeError(w, http.StatusServiceUnavailable, "not ready", map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handlePOT(w http.ResponseWriter, r *http.Request) {
	t0, err := parseTimeParam(r.URL.Query().Get("t0"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "t0: "+err.Error(), nil)
		return
	}
	t1, err := parseTimeParam(r.URL.Query().Get("t1"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "t1: "+err.Error(), nil)
		return
	}

	sample, err := s.src.POTInterval(r.Context(), t0, t1)
	if err != nil {
		s.writeUpstreamError(w, r, err, "pot query failed")
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

type livetimeRequest struct {
	T0        jsonTime           `json:"t0"`
	T1        jsonTime           `json:"t1"`
	Intervals []livetimeInterval `json:"intervals"`
}

type livetimeInterval struct {
	Start jsonTime `json:"start"`
	End   jsonTime `json:"end"`
}

func (req livetimeRequest) Validate() map[string]string {
	errs := map[string]string{}
	if req.T0.IsZero() {
		errs["t0"] = "is required"
	}
	if req.T1.IsZero() {
		errs["t1"] = "is required"
	}
	for i, iv := range req.Intervals {
		if iv.Start.IsZero() || iv.End.IsZero() {
			errs["intervals"] = "entry " + strconv.Itoa(i) + " is missing start or end"
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Server) handleLivetime(w http.ResponseWriter, r *http.Request) {
	var req livetimeRequest
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes), &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if errs := req.Validate(); errs != nil {
		writeError(w, http.StatusBadRequest, "invalid payload", errs)
		return
	}

	daq := make([]livetime.Interval, len(req.Intervals))
	for i, iv := range req.Intervals {
		daq[i] = livetime.Interval{Start: iv.Start.Time, End: iv.End.Time}
	}

	report, err := s.engine.Compute(r.Context(), req.T0.Time, req.T1.Time, daq)
	if err != nil {
		if errors.Is(err, livetime.ErrZeroWindow) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		s.writeUpstreamError(w, r, err, "livetime computation failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeUpstreamError maps IFBeam failures to 502 so callers can tell
// upstream trouble from their own bad requests.
func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := logging.FromContext(r.Context(), s.log)
	var statusErr *ifbeam.StatusError
	if errors.As(err, &statusErr) {
		logger.Error("ifbeam query failed", "status", statusErr.StatusCode)
		writeError(w, http.StatusBadGateway, "ifbeam query failed", map[string]string{
			"upstream_status": strconv.Itoa(statusErr.StatusCode),
		})
		return
	}
	var parseErr *ifbeam.ParseError
	if errors.As(err, &parseErr) {
		logger.Error("ifbeam response unparseable", "error", parseErr.Error())
		writeError(w, http.StatusBadGateway, "ifbeam response unparseable", nil)
		return
	}
	logger.Error(fallback, "error", err.Error())
	writeError(w, http.StatusInternalServerError, fallback, nil)
}

// parseTimeParam accepts integer Unix epoch seconds or RFC3339.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("is required")
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("must be epoch seconds or RFC3339")
	}
	return t.UTC(), nil
}

type jsonTime struct {
	time.Time
}

func (t *jsonTime) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := parseTimeParam(v)
		if err != nil {
			return err
		}
		t.Time = parsed
	case float64:
		t.Time = time.Unix(int64(v), 0).UTC()
	default:
		return errors.New("timestamp must be epoch seconds or RFC3339")
	}
	return nil
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details map[string]string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
