// Package server exposes the dataset catalog over HTTP.
//
// The surface is read-only: registry listings, per-dataset descriptions,
// id lists, and field values. Scalar kinds are served as JSON; volumes
// stream as NPY.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/errors"
	"github.com/scancat/scancat/pkg/volume"
)

// Opener resolves a dataset name to a live accessor, typically a
// cache-wrapped dataset over the configured raw root.
type Opener func(name string) (dataset.Dataset, error)

// Server serves the catalog API.
type Server struct {
	reg    *dataset.Registry
	open   Opener
	logger *log.Logger
	router chi.Router
}

// New builds the server. A nil logger falls back to log.Default().
func New(reg *dataset.Registry, open Opener, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{reg: reg, open: open, logger: logger}

	r := chi.NewRouter()
	r.Use(s.logRequests)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/datasets", s.listDatasets)
		r.Route("/datasets/{name}", func(r chi.Router) {
			r.Get("/", s.getDataset)
			r.Get("/ids", s.listIDs)
			r.Get("/ids/{id}/{field}", s.getField)
			r.Get("/ids/{id}/{field}/slices/{z}", s.getSlice)
		})
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("serving catalog", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type datasetInfo struct {
	Name       string      `json:"name"`
	Modality   []string    `json:"modality,omitempty"`
	BodyRegion []string    `json:"body_region,omitempty"`
	Task       []string    `json:"task,omitempty"`
	License    licenseInfo `json:"license"`
	Link       string      `json:"link,omitempty"`
	RawSize    string      `json:"raw_size,omitempty"`
	CachedSize string      `json:"cached_size,omitempty"`
}

type licenseInfo struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

type fieldInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Doc  string `json:"doc,omitempty"`
}

func info(e dataset.Entry) datasetInfo {
	d := e.Description
	return datasetInfo{
		Name:       e.Name,
		Modality:   d.Modality,
		BodyRegion: d.BodyRegion,
		Task:       d.Task,
		License:    licenseInfo{Name: d.License.Name, URL: d.License.URL},
		Link:       d.Link,
		RawSize:    d.RawDataSize,
		CachedSize: d.PrepDataSize,
	}
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	entries := s.reg.All()
	out := make([]datasetInfo, len(entries))
	for i, e := range entries {
		out[i] = info(e)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDataset(w http.ResponseWriter, r *http.Request) {
	e, err := s.reg.Get(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	fields := make([]fieldInfo, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = fieldInfo{Name: f.Name, Kind: f.Kind.String(), Doc: f.Doc}
	}
	s.writeJSON(w, http.StatusOK, struct {
		datasetInfo
		Fields []fieldInfo `json:"fields"`
	}{info(e), fields})
}

func (s *Server) listIDs(w http.ResponseWriter, r *http.Request) {
	ds, err := s.open(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	ids, err := ds.IDs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

// fieldParams extracts and validates the id and field path parameters.
// IDs and field names end up in cache keys, so traversal-looking input is
// rejected before it reaches a dataset.
func fieldParams(r *http.Request) (id, field string, err error) {
	id, field = chi.URLParam(r, "id"), chi.URLParam(r, "field")
	if err := errors.ValidateID(id); err != nil {
		return "", "", err
	}
	if err := errors.ValidateFieldName(field); err != nil {
		return "", "", err
	}
	return id, field, nil
}

func (s *Server) getField(w http.ResponseWriter, r *http.Request) {
	id, field, err := fieldParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ds, err := s.open(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, err := ds.Fetch(r.Context(), id, field)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if vol, ok := v.(*volume.Volume); ok {
		w.Header().Set("Content-Type", "application/octet-stream")
		if err := volume.WriteNPY(w, vol); err != nil {
			// Headers are gone; all we can do is log.
			s.logger.Error("streaming volume", "err", err)
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"value": v})
}

// getSlice serves a single axial plane of a volume field as JSON, so a
// browser client can preview a scan without pulling the whole NPY stream.
func (s *Server) getSlice(w http.ResponseWriter, r *http.Request) {
	id, field, err := fieldParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ds, err := s.open(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, err := ds.Fetch(r.Context(), id, field)
	if err != nil {
		s.writeError(w, err)
		return
	}
	vol, ok := v.(*volume.Volume)
	if !ok {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput,
			"field %q is not a volume", field))
		return
	}
	z, err := strconv.Atoi(chi.URLParam(r, "z"))
	if err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput,
			"slice index %q is not an integer", chi.URLParam(r, "z")))
		return
	}
	plane, err := vol.SliceZ(z)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"z":      z,
		"shape":  []int{vol.Shape[0], vol.Shape[1]},
		"values": plane,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "err", err)
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Code = string(errors.GetCode(err))
	body.Error.Message = errors.UserMessage(err)
	s.writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrCodeInvalidDataset),
		errors.Is(err, errors.ErrCodeIDNotFound),
		errors.Is(err, errors.ErrCodeInvalidField),
		errors.Is(err, errors.ErrCodeNotFound),
		errors.Is(err, errors.ErrCodeFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrCodeInvalidInput),
		errors.Is(err, errors.ErrCodeInvalidID),
		errors.Is(err, errors.ErrCodeInvalidPath),
		errors.Is(err, errors.ErrCodeInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrCodeChecksumMismatch),
		errors.Is(err, errors.ErrCodeCorruptBlob):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}
