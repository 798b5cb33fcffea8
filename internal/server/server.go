// Package server exposes the members editor over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/assert"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/ESN-MoRe/members-manager/internal/progress"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	report_request = "server.request"

	defaultMaxUploadBytes = 32 << 20
	maxJsonBytes          = 4 << 20
)

type Content interface {
	GetContent(ctx context.Context, log progress.LogFunc, opts ...content.GetOption) (string, error)
}

type Members interface {
	Current(ctx context.Context, log progress.LogFunc) (pagemodel.State, error)
	Preview(ctx context.Context, state pagemodel.State, log progress.LogFunc) (members.Preview, error)
	RollBoardYear(ctx context.Context, year string, log progress.LogFunc) (string, error)
}

type Images interface {
	UploadImages(ctx context.Context, files []images.File, log progress.LogFunc) ([]images.Result, error)
}

type Options struct {
	// UploadDir keeps pictures uploaded from the editor, it is served under /members-img/.
	UploadDir string
	// StagingDir holds the per batch directories of pictures being deployed upstream.
	StagingDir     string
	MaxUploadBytes int64
	Telemetry      telemetry.API
}

type Server struct {
	content Content
	members Members
	images  Images
	opts    Options
	tel     telemetry.API
}

func New(content Content, members Members, images Images, opts Options) *Server {
	assert.NotNil(content, "content")
	assert.NotNil(members, "members")
	assert.NotNil(images, "images")
	assert.NotEmptyStr(opts.UploadDir, "upload dir")
	assert.NotEmptyStr(opts.StagingDir, "staging dir")
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Server{
		content: content,
		members: members,
		images:  images,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("server", telemetry.OrDefault(opts.Telemetry)),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/drupal/stream-about-us", s.streamAboutUs)

		r.Route("/members", func(r chi.Router) {
			r.Get("/", s.getMembers)
			r.With(middleware.RequestSize(maxJsonBytes)).Post("/", s.previewMembers)
			r.With(middleware.RequestSize(maxJsonBytes)).Post("/board-year", s.rollBoardYear)
			r.Post("/upload", s.uploadPhoto)
			r.Post("/sync", s.syncPhotos)
		})
	})

	r.Handle("/members-img/*", http.StripPrefix("/members-img/", http.FileServer(http.Dir(s.opts.UploadDir))))
	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.DebugContext(
				r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, members.ErrUnknownSection),
		errors.Is(err, members.ErrDuplicateMember),
		errors.Is(err, members.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, pagemodel.ErrSectionNotFound),
		errors.Is(err, pagemodel.ErrListNotFound),
		errors.Is(err, pagemodel.ErrMemberNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.tel.ReportWarning(report_request, r.URL.Path, err)
	}
	writeJson(w, status, errorResponse{Error: err.Error()})
}
