// Package server exposes the conversion pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/boxtvsaltogif/pdf-mp3/docs"
	"github.com/boxtvsaltogif/pdf-mp3/internal/appinfo"
	"github.com/boxtvsaltogif/pdf-mp3/internal/pipeline"
	"github.com/boxtvsaltogif/pdf-mp3/internal/speech"
	"github.com/boxtvsaltogif/pdf-mp3/internal/voices"
)

const (
	// DefaultMaxUploadBytes bounds the multipart body of POST /convert.
	DefaultMaxUploadBytes = 50 << 20
	shutdownTimeout       = 5 * time.Second
)

// Converter is the part of the orchestrator the HTTP layer drives.
type Converter interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Delivery, error)
	State() pipeline.State
	Snapshot() pipeline.Snapshot
	Delivery() *pipeline.Delivery
}

// Options configure a Server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP delivery surface.
type Server struct {
	conv Converter
	opts Options
	log  *slog.Logger
	srv  *http.Server
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string         `json:"error"`
	State pipeline.State `json:"state,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	State   pipeline.State `json:"state"`
	Busy    bool           `json:"busy"`
}

// VoiceResponse describes one catalogue voice.
type VoiceResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// New returns a Server driving conv.
func New(conv Converter, opts Options, logger *slog.Logger) *Server {
	if conv == nil {
		panic("server: converter must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Server{
		conv: conv,
		opts: opts,
		log:  logger.With("component", "server"),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /voices", s.handleVoices)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", "addr", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// handleConvert runs a conversion and returns the MP3.
//
// @Summary     Convert a PDF to MP3
// @Description Extracts the text of the uploaded PDF, synthesizes it segment by segment and
// @Description returns the MP3 as an attachment. Only one conversion runs at a time.
// @Tags        conversion
// @Accept      multipart/form-data
// @Produce     audio/mpeg
// @Param       file   formData  file    true   "PDF document"
// @Param       voice  formData  string  false  "Voice ID or name (default Kore)"
// @Success     200  {file}    binary         "MP3 file"
// @Header      200  {string}  X-Job-Id       "Job identifier"
// @Header      200  {string}  X-Warning      "Set when some parts were skipped"
// @Failure     400  {object}  ErrorResponse  "Invalid input"
// @Failure     409  {object}  ErrorResponse  "A conversion is already running"
// @Failure     422  {object}  ErrorResponse  "Unreadable PDF"
// @Failure     502  {object}  ErrorResponse  "Speech service failure"
// @Failure     500  {object}  ErrorResponse  "Internal error"
// @Router      /convert [post]
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var (
		fileName string
		data     []byte
	)
	if f, hdr, err := r.FormFile("file"); err == nil {
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
			return
		}
		fileName = hdr.Filename
	}

	d, err := s.conv.Run(r.Context(), pipeline.Input{
		FileName: fileName,
		Data:     data,
		Voice:    r.FormValue("voice"),
	})
	if err != nil {
		s.writeError(w, statusFor(err), pipeline.UserMessage(err))
		return
	}

	snap := s.conv.Snapshot()
	s.log.Info("serving conversion result",
		"job_id", d.JobID,
		"file", d.FileName,
		"size", humanize.Bytes(uint64(d.Len())),
	)
	w.Header().Set("X-Job-Id", d.JobID)
	w.Header().Set("X-Skipped-Segments", strconv.Itoa(snap.Skipped))
	if snap.Warning != "" {
		w.Header().Set("X-Warning", snap.Warning)
	}
	s.writeDelivery(w, d)
}

// handleDownload returns the last MP3 again.
//
// @Summary     Download the last result
// @Description Returns the MP3 of the most recent completed conversion until a new one supersedes it.
// @Tags        conversion
// @Produce     audio/mpeg
// @Success     200  {file}    binary         "MP3 file"
// @Failure     404  {object}  ErrorResponse  "Nothing to download"
// @Router      /download [get]
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	d := s.conv.Delivery()
	if d == nil {
		s.writeError(w, http.StatusNotFound, "No converted file is available.")
		return
	}
	w.Header().Set("X-Job-Id", d.JobID)
	s.writeDelivery(w, d)
}

// handleStatus reports the current job.
//
// @Summary     Current job status
// @Tags        conversion
// @Produce     json
// @Success     200  {object}  pipeline.Snapshot
// @Router      /status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.conv.Snapshot())
}

// handleVoices lists the voice catalogue.
//
// @Summary     List voices
// @Tags        voices
// @Produce     json
// @Success     200  {array}  VoiceResponse
// @Router      /voices [get]
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	all := voices.All()
	out := make([]VoiceResponse, 0, len(all))
	for _, v := range all {
		out = append(out, VoiceResponse{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			Default:     v.ID == voices.DefaultID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth is the liveness check.
//
// @Summary     Liveness check
// @Tags        health
// @Produce     json
// @Success     200  {object}  HealthResponse
// @Router      /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.conv.State()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: appinfo.Version(),
		State:   state,
		Busy:    state.Busy(),
	})
}

func (s *Server) writeDelivery(w http.ResponseWriter, d *pipeline.Delivery) {
	data := d.Bytes()
	w.Header().Set("Content-Type", d.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn("writing mp3 response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "status", status, "message", message)
	}
	writeJSON(w, status, ErrorResponse{Error: message, State: s.conv.Snapshot().State})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var (
		validation *pipeline.ValidationError
		extraction *pipeline.ExtractionError
		transport  *speech.TransportError
		payload    *speech.PayloadError
	)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &extraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &transport), errors.As(err, &payload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
