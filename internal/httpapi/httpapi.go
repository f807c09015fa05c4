// Package httpapi exposes postal code lookups over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andreiashu/jpostcode"
)

// IndexProvider returns the loaded index for a region.
type IndexProvider interface {
	GetOrBuild(ctx context.Context, region jpostcode.Region) (*jpostcode.Index, error)
}

// LookupResponse is the body of a successful lookup.
type LookupResponse struct {
	Region  string              `json:"region"`
	Query   string              `json:"query"`
	Results []jpostcode.Address `json:"results"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

type server struct {
	indexes IndexProvider
	logger  *zap.Logger
}

// NewRouter returns the HTTP handler:
//
//	GET /healthz
//	GET /v1/regions
//	GET /v1/regions/{region}/codes/{code}?all=true
func NewRouter(indexes IndexProvider, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{indexes: indexes, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/v1/regions", s.listRegions)
	r.Get("/v1/regions/{region}/codes/{code}", s.lookup)
	return r
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listRegions(w http.ResponseWriter, _ *http.Request) {
	regions := jpostcode.Regions()
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.String()
	}
	writeJSON(w, http.StatusOK, map[string][]string{"regions": names})
}

func (s *server) lookup(w http.ResponseWriter, r *http.Request) {
	region, err := jpostcode.ParseRegion(chi.URLParam(r, "region"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	code, err := url.PathUnescape(chi.URLParam(r, "code"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed code"})
		return
	}
	all := false
	if v := r.URL.Query().Get("all"); v != "" {
		if all, err = strconv.ParseBool(v); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "all must be a boolean"})
			return
		}
	}

	idx, err := s.indexes.GetOrBuild(r.Context(), region)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		s.logger.Error("index unavailable",
			zap.String("region", region.String()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, status, ErrorResponse{Error: "index unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, LookupResponse{
		Region:  region.String(),
		Query:   code,
		Results: idx.Lookup(code, jpostcode.LookupOptions{NoLimit: all}),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
