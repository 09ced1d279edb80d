// Package server exposes a read-only HTTP API over a game data root.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/jchantrell/slimdivers/internal/archive"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/toc"
)

// Archive is the read side of an archive.Store
type Archive interface {
	Classify(name string) archive.Kind
	TOC(name string) ([]byte, error)
	Resource(name string, offset, size uint64) ([]byte, error)
	Catalog() *catalog.Catalog
}

// Server serves package and resource lookups
type Server struct {
	archive   Archive
	locations *toc.Locations
	router    *mux.Router
}

func New(a Archive, locations *toc.Locations) *Server {
	if locations == nil {
		locations = toc.NewLocations()
	}

	s := &Server{archive: a, locations: locations, router: mux.NewRouter()}

	s.router.HandleFunc("/health", s.health).Methods("GET")
	s.router.HandleFunc("/packages/{name}", s.getPackage).Methods("GET")
	s.router.HandleFunc("/packages/{name}/toc", s.getTOC).Methods("GET")
	s.router.HandleFunc("/packages/{name}/resource", s.getResource).Methods("GET")
	s.router.HandleFunc("/resources/{id}", s.getLocation).Methods("GET")
	s.router.HandleFunc("/resources/{id}/data", s.getLocationData).Methods("GET")
	s.router.Use(logRequests)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Serving", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, archive.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"packages":  len(s.archive.Catalog().PackageNames()),
		"resources": s.locations.Len(),
	})
}

type entryView struct {
	OriginalOffset uint64 `json:"original_offset"`
	StartOffset    uint64 `json:"start_offset"`
	Span           uint64 `json:"span"`
	Bundle         string `json:"bundle"`
}

type packageView struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"`
	Size    uint64      `json:"size,omitempty"`
	Entries []entryView `json:"entries,omitempty"`
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	kind := s.archive.Classify(name)

	view := packageView{Name: name, Kind: kind.String()}
	if kind == archive.KindBundled {
		p, ok := s.archive.Catalog().Package(name)
		if !ok {
			writeError(w, fmt.Errorf("%w: package %s", archive.ErrNotFound, name))
			return
		}
		view.Size = p.Size
		for i, e := range p.Entries {
			view.Entries = append(view.Entries, entryView{
				OriginalOffset: e.OriginalOffset,
				StartOffset:    e.StartOffset,
				Span:           p.Span(i),
				Bundle:         e.Bundle(),
			})
		}
	}

	writeJSON(w, http.StatusOK, view)
}

type headerView struct {
	FileID     string `json:"file_id"`
	TypeID     string `json:"type_id"`
	DataOffset uint64 `json:"data_offset"`
	DataSize   uint32 `json:"data_size"`
	StreamSize uint32 `json:"stream_size"`
	GPUSize    uint32 `json:"gpu_size"`
}

func (s *Server) getTOC(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	data, err := s.archive.TOC(name)
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("raw") != "" {
		writeBytes(w, data)
		return
	}

	f, err := toc.Parse(data)
	if err != nil {
		writeError(w, fmt.Errorf("parsing toc of %s: %w", name, err))
		return
	}

	headers := make([]headerView, len(f.Headers))
	for i, h := range f.Headers {
		headers[i] = headerView{
			FileID:     fmt.Sprintf("%016x", h.FileID),
			TypeID:     fmt.Sprintf("%016x", h.TypeID),
			DataOffset: h.DataOffset,
			DataSize:   h.DataSize,
			StreamSize: h.StreamSize,
			GPUSize:    h.GPUSize,
		}
	}
	writeJSON(w, http.StatusOK, headers)
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	q := r.URL.Query()

	offset, err := strconv.ParseUint(q.Get("offset"), 0, 64)
	if err != nil {
		badRequest(w, "invalid offset %q", q.Get("offset"))
		return
	}

	var size uint64
	if v := q.Get("size"); v != "" {
		if size, err = strconv.ParseUint(v, 0, 64); err != nil {
			badRequest(w, "invalid size %q", v)
			return
		}
	}

	data, err := s.archive.Resource(name, offset, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, data)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (uint64, toc.Location, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		badRequest(w, "invalid resource id %q", raw)
		return 0, toc.Location{}, false
	}

	loc, ok := s.locations.Lookup(id)
	if !ok {
		writeError(w, fmt.Errorf("%w: resource %016x", archive.ErrNotFound, id))
		return 0, toc.Location{}, false
	}
	return id, loc, true
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	id, loc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": fmt.Sprintf("%016x", id),
		"package": loc.Package,
		"offset":  loc.Offset,
		"size":    loc.Size,
	})
}

func (s *Server) getLocationData(w http.ResponseWriter, r *http.Request) {
	_, loc, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data, err := s.archive.Resource(loc.Package, loc.Offset, uint64(loc.Size))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, data)
}
