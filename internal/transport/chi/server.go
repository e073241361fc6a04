// Package chi exposes the inference service over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ecolens/tierscore/internal/domain"
	"github.com/ecolens/tierscore/internal/domain/score"
	logpkg "github.com/ecolens/tierscore/internal/logger"
	healthuc "github.com/ecolens/tierscore/internal/usecase/health"
	inferenceuc "github.com/ecolens/tierscore/internal/usecase/inference"
	"github.com/ecolens/tierscore/internal/version"
)

const (
	welcomeMessage = "Welcome to the Local Sustainability Scoring API. POST an image to /predict."
	uploadField    = "file"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves predictions, artifact info, health and metrics.
type Server struct {
	inference      *inferenceuc.Service
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes bounds the request body of /predict.
func NewServer(
	inference *inferenceuc.Service,
	health *healthuc.Service,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		inference:      inference,
		health:         health,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrModelUnavailable, http.StatusInternalServerError, "Model is not loaded or has failed."),
		sentinelHandler(domain.ErrInvalidImage, http.StatusBadRequest, "Invalid image file."),
		invalidParameterHandler,
		sentinelHandler(domain.ErrVocabularyMismatch, http.StatusInternalServerError, domain.ErrVocabularyMismatch.Error()),
		sentinelHandler(domain.ErrLabelFormat, http.StatusInternalServerError, domain.ErrLabelFormat.Error()),
		sentinelHandler(domain.ErrInvalidDistribution, http.StatusInternalServerError, domain.ErrInvalidDistribution.Error()),
		sentinelHandler(context.Canceled, http.StatusServiceUnavailable, "request cancelled"),
		sentinelHandler(context.DeadlineExceeded, http.StatusServiceUnavailable, "request timed out"),
	}
	return s
}

// Mount registers all routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/predict", s.Predict)
	r.Get("/health", s.HealthCheck)
	r.Get("/v1/model", s.ModelInfo)
	r.Get("/metrics", s.Metrics)
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: welcomeMessage})
}

// Predict handles POST /predict. The body is either the raw image or a multipart form
// with the image in the "file" field.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	var opts []inferenceuc.PredictOption
	if r.URL.Query().Has("top_k") {
		var topK int
		if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &topK); err != nil {
			writeError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		if topK < 1 {
			writeError(w, http.StatusBadRequest, "top_k must be positive")
			return
		}
		opts = append(opts, inferenceuc.WithTopK(topK))
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	data, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, errMissingUpload):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logpkg.FromContext(r.Context()).Warn("Failed to read upload", zap.Error(err))
			writeError(w, http.StatusBadRequest, "failed to read request body")
		}
		return
	}

	res, err := s.inference.Predict(r.Context(), data, opts...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, predictionToResponse(res))
}

// ModelInfo handles GET /v1/model.
func (s *Server) ModelInfo(w http.ResponseWriter, _ *http.Request) {
	info := s.inference.Info()

	resp := modelResponse{
		State:      info.State.String(),
		Name:       info.Name,
		Version:    info.Version,
		Digest:     info.Digest,
		Labels:     info.Labels,
		InputShape: info.InputShape,
		Layout:     string(info.Layout),
		LastError:  info.LastError,
		Build: buildResponse{
			Version: version.Version,
			Commit:  version.Commit,
			Date:    version.Date,
		},
	}
	if !info.LoadedAt.IsZero() {
		t := info.LoadedAt.UTC().Format(time.RFC3339)
		resp.LoadedAt = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

var errMissingUpload = fmt.Errorf("multipart field %q is required", uploadField)

// readUpload returns the image bytes of a raw or multipart request body.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errMissingUpload
		}
		if err != nil {
			return nil, fmt.Errorf("multipart part: %w", err)
		}
		if part.FormName() != uploadField {
			_ = part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		return data, err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, detail string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, detail)
		return true
	}
}

// invalidParameterHandler reports the parameter problem; its text is built from request input only.
func invalidParameterHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidParameter) {
		return false
	}
	writeError(w, http.StatusBadRequest, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Prediction failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func predictionToResponse(r score.Result) predictionResponse {
	resp := predictionResponse{
		PredictedClass:      r.Label,
		SustainabilityScore: r.Score,
		Confidence:          r.Confidence,
	}
	for _, c := range r.Top {
		resp.TopPredictions = append(resp.TopPredictions, candidateResponse{
			Class:               c.Label,
			SustainabilityScore: c.Score,
			Probability:         c.Probability,
		})
	}
	return resp
}
