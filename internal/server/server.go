// Package server exposes the postcard pipeline over HTTP.
//
// Routes:
//
//	GET  /health        liveness plus chat provider health
//	POST /api/postcard  JSON {image_url, caption?, svg?, style?, layout?, format?, encoding?, upload?}
//	POST /api/upload    multipart form with an "image" file and the same fields
//	POST /api/poetry    JSON {text, encoding?}
//	GET  /metrics       Prometheus metrics, when a handler is configured
//
// Successful requests answer with JSON carrying the image as a data URI,
// or with the raw image bytes when encoding is "raw". Failures answer with
// {"error": {"code": ..., "message": ...}} where the message is safe to
// show to end users.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	perrors "github.com/matzehuels/postcard/pkg/errors"
	"github.com/matzehuels/postcard/pkg/pipeline"
	"github.com/matzehuels/postcard/pkg/postcard"
)

const (
	defaultMaxBody = 10 << 20
	healthTimeout  = 5 * time.Second
)

// Options configures a [Server].
type Options struct {
	Logger       *log.Logger
	MaxBodyBytes int64        // JSON and multipart body cap
	Metrics      http.Handler // mounted at /metrics when set
	Version      string
}

// Server holds the handlers. It is safe for concurrent use.
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	maxBody int64
	metrics http.Handler
	version string
}

// New creates a server around runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	return &Server{
		runner:  runner,
		logger:  opts.Logger,
		maxBody: opts.MaxBodyBytes,
		metrics: opts.Metrics,
		version: opts.Version,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, s.logRequests)

	r.Get("/health", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/postcard", s.createPostcard)
		r.Post("/upload", s.uploadPostcard)
		r.Post("/poetry", s.createPoetry)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// =============================================================================
// Handlers
// =============================================================================

type healthResponse struct {
	Status  string      `json:"status"`
	Version string      `json:"version,omitempty"`
	Chat    *chatHealth `json:"chat,omitempty"`
}

type chatHealth struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: s.version}
	if p := s.runner.Chat; p != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		ch := &chatHealth{Provider: p.Name(), Model: p.Model(), OK: true}
		if err := p.Health(ctx); err != nil {
			ch.OK, ch.Error = false, perrors.PublicMessage(err)
			resp.Status = "degraded"
			s.logger.Warn("chat provider unhealthy", "provider", p.Name(), "error", err)
		}
		resp.Chat = ch
	}
	s.json(w, http.StatusOK, resp)
}

type postcardRequest struct {
	pipeline.Options
	Encoding string `json:"encoding,omitempty"`
}

type poetryRequest struct {
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
}

// Response is the JSON body of a successful generation.
type Response struct {
	ID        string             `json:"id"`
	Caption   string             `json:"caption"`
	SVG       string             `json:"svg,omitempty"`
	Format    postcard.Format    `json:"format"`
	MIMEType  string             `json:"mime_type"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Image     string             `json:"image"` // data URI
	URL       string             `json:"url,omitempty"`
	SVGFailed bool               `json:"svg_failed,omitempty"`
	SVGError  string             `json:"svg_error,omitempty"`
	Cached    pipeline.CacheInfo `json:"cached"`
}

func (s *Server) createPostcard(w http.ResponseWriter, r *http.Request) {
	var req postcardRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.execute(w, r, req.Options, req.Encoding)
}

func (s *Server) uploadPostcard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(perrors.MaxUploadSize); err != nil {
		s.fail(w, r, bodyError(err, "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		s.fail(w, r, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "image file is required"))
		return
	}
	defer file.Close()
	if err := perrors.ValidateUploadFilename(header.Filename); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := perrors.ValidateUploadSize(header.Size); err != nil {
		s.fail(w, r, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, perrors.MaxUploadSize+1))
	if err != nil {
		s.fail(w, r, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "read upload"))
		return
	}
	if err := perrors.ValidateUploadSize(int64(len(data))); err != nil {
		s.fail(w, r, err)
		return
	}

	upload, _ := strconv.ParseBool(r.FormValue("upload"))
	opts := pipeline.Options{
		Image:   data,
		Caption: r.FormValue("caption"),
		SVG:     r.FormValue("svg"),
		Style:   r.FormValue("style"),
		Layout:  r.FormValue("layout"),
		Format:  r.FormValue("format"),
		Upload:  upload,
	}
	s.execute(w, r, opts, r.FormValue("encoding"))
}

func (s *Server) createPoetry(w http.ResponseWriter, r *http.Request) {
	var req poetryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	enc, err := parseEncoding(req.Encoding)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.runner.Poetry(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeResult(w, result, enc)
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, opts pipeline.Options, encoding string) {
	enc, err := parseEncoding(encoding)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts.Logger = s.logger.With("request_id", middleware.GetReqID(r.Context()))
	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeResult(w, result, enc)
}

// parseEncoding defaults to base64 JSON, unlike the library default.
func parseEncoding(s string) (postcard.Encoding, error) {
	if s == "" {
		return postcard.EncodingBase64, nil
	}
	enc, err := postcard.ParseEncoding(s)
	if err != nil {
		return "", perrors.Wrap(perrors.ErrCodeInvalidInput, err, "%v", err)
	}
	return enc, nil
}

func (s *Server) writeResult(w http.ResponseWriter, result *pipeline.Result, enc postcard.Encoding) {
	a := result.Artifact
	if enc == postcard.EncodingRaw {
		w.Header().Set("Content-Type", a.MIMEType())
		w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
		w.Header().Set("X-Postcard-ID", result.ID)
		if u := result.URL(); u != "" {
			w.Header().Set("X-Postcard-URL", u)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(a.Data)
		return
	}
	s.json(w, http.StatusOK, Response{
		ID:        result.ID,
		Caption:   result.Caption,
		SVG:       result.SVG,
		Format:    a.Format,
		MIMEType:  a.MIMEType(),
		Width:     a.Width,
		Height:    a.Height,
		Image:     a.DataURI(),
		URL:       result.URL(),
		SVGFailed: a.SVGFailed,
		SVGError:  a.SVGFailure(),
		Cached:    result.CacheInfo,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return bodyError(err, "invalid JSON body")
	}
	return nil
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "request body too large (max %d bytes)", tooLarge.Limit)
	}
	return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "%s", msg)
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    perrors.Code `json:"code"`
	Message string       `json:"message"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := perrors.GetCode(err)
	if code == "" {
		code = perrors.ErrCodeInternal
	}
	status := StatusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "code", code, "error", err,
			"request_id", middleware.GetReqID(r.Context()))
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	s.json(w, status, errorBody{Error: errorDetail{Code: code, Message: perrors.PublicMessage(err)}})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code perrors.Code) int {
	switch code {
	case perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidImage, perrors.ErrCodeInvalidFormat,
		perrors.ErrCodeInvalidStyle, perrors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case perrors.ErrCodeNotFound:
		return http.StatusNotFound
	case perrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case perrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case perrors.ErrCodeFetchFailed, perrors.ErrCodeCaptionFailed, perrors.ErrCodeUploadFailed,
		perrors.ErrCodeNetwork, perrors.ErrCodeUnauthorized:
		return http.StatusBadGateway
	case perrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
