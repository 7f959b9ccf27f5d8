// Package server exposes the labeling service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"ortholabel/internal/app"
	"ortholabel/internal/labelstore"
	"ortholabel/internal/mapping"
	"ortholabel/internal/project"
)

const (
	// maxUploadSize bounds multipart uploads held in memory.
	maxUploadSize = 64 << 20
	maxBodySize   = 1 << 20
)

// Server routes HTTP requests to an app.Service.
type Server struct {
	svc *app.Service
	mux *http.ServeMux
}

// New creates a Server and registers its routes.
func New(svc *app.Service) *Server {
	s := &Server{svc: svc, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("POST /segment", s.handleSegment)
	s.mux.HandleFunc("POST /save_label", s.handleSaveLabel)
	s.mux.HandleFunc("GET /labels/{image_id}", s.handleLabels)
	s.mux.HandleFunc("GET /uploads/{filename}", s.handleUploadFile)
	return s
}

// ServeHTTP applies permissive CORS headers and dispatches the request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "no file")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		badRequest(w, "empty filename")
		return
	}

	up, err := s.svc.Upload(header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

type segmentBody struct {
	ImageFilename string  `json:"image_filename"`
	NSegments     int     `json:"n_segments"`
	Compactness   float64 `json:"compactness"`
}

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		badRequest(w, "failed to read body")
		return
	}
	var body segmentBody
	if err := decodeValid(segmentValidator, data, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := s.svc.Segment(r.Context(), app.SegmentRequest{
		ImageFilename: body.ImageFilename,
		NSegments:     body.NSegments,
		Compactness:   body.Compactness,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type saveLabelBody struct {
	ImageID      string `json:"image_id"`
	SuperpixelID int    `json:"superpixel_id"`
	Label        string `json:"label"`
	User         string `json:"user"`
}

func (s *Server) handleSaveLabel(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		badRequest(w, "failed to read body")
		return
	}
	var body saveLabelBody
	if err := decodeValid(saveLabelValidator, data, &body); err != nil {
		badRequest(w, err.Error())
		return
	}

	res, err := s.svc.SaveLabel(r.Context(), app.LabelRequest{
		ImageID:  body.ImageID,
		RegionID: body.SuperpixelID,
		Label:    body.Label,
		User:     body.User,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Labels(r.Context(), r.PathValue("image_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if doc == nil {
		doc = labelstore.Document{}
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.Workspace().UploadPath(r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", "inline; filename="+filepath.Base(path))
	http.ServeFile(w, r, path)
}

// statusFor maps service errors to HTTP status codes and client messages.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, mapping.ErrRegionNotFound):
		return http.StatusBadRequest, "superpixel not found"
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, labelstore.ErrInvalidInput),
		errors.Is(err, project.ErrBadUpload):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// badRequest is a helper for rejecting malformed requests.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: failed to write response: %v", err)
	}
}
