package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	libtelemetry "github.com/ESN-MoRe/members-manager/lib/telemetry"
)

type healthResponse struct {
	Status string                 `json:"status"`
	Perf   libtelemetry.PerfStats `json:"perf"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, healthResponse{
		Status: "ok",
		Perf:   libtelemetry.ReadPerfStats(r.Context()),
	})
}

// streamAboutUs relays the progress of fetching the page as server sent events.
func (s *Server) streamAboutUs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, r, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	var opts []content.GetOption
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		opts = append(opts, content.ForceRefresh())
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := progress.Run(r.Context(), func(ctx context.Context, log progress.LogFunc) (string, error) {
		return s.content.GetContent(ctx, log, opts...)
	})
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.tel.ReportBroken(report_request, r.URL.Path, err)
			continue
		}
		_, err = fmt.Fprintf(w, "data: %s\n\n", data)
		if err != nil {
			// client went away, Run stops emitting once the request context ends
			continue
		}
		flusher.Flush()
	}
}

func (s *Server) getMembers(w http.ResponseWriter, r *http.Request) {
	state, err := s.members.Current(r.Context(), nil)
	if err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	writeJson(w, http.StatusOK, state)
}

type previewResponse struct {
	Success     bool               `json:"success"`
	HtmlPreview string             `json:"htmlPreview"`
	OldHtml     string             `json:"oldHtml"`
	NewHtml     string             `json:"newHtml"`
	Images      members.ImageDiff  `json:"images"`
	Members     members.MemberDiff `json:"members"`
}

func (s *Server) previewMembers(w http.ResponseWriter, r *http.Request) {
	var state pagemodel.State
	err := json.NewDecoder(r.Body).Decode(&state)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode members: %w", err))
		return
	}

	preview, err := s.members.Preview(r.Context(), state, nil)
	if err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	writeJson(w, http.StatusOK, previewResponse{
		Success:     true,
		HtmlPreview: preview.NewHTML,
		OldHtml:     preview.OldHTML,
		NewHtml:     preview.NewHTML,
		Images:      preview.Images,
		Members:     preview.Members,
	})
}

type boardYearRequest struct {
	Year string `json:"year"`
}

type boardYearResponse struct {
	NewHtml string `json:"newHtml"`
}

func (s *Server) rollBoardYear(w http.ResponseWriter, r *http.Request) {
	var req boardYearRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Year) == "" {
		s.fail(w, r, http.StatusBadRequest, errors.New("year is required"))
		return
	}

	html, err := s.members.RollBoardYear(r.Context(), req.Year, nil)
	if err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	writeJson(w, http.StatusOK, boardYearResponse{NewHtml: html})
}

// safeFilename keeps only the base name of an uploaded file.
func safeFilename(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid filename %q", name)
	}
	return name, nil
}

func saveUpload(header *multipart.FileHeader, dir string) (string, error) {
	name, err := safeFilename(header.Filename)
	if err != nil {
		return "", err
	}
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	err := r.ParseMultipartForm(s.opts.MaxUploadBytes)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return false
	}
	return true
}

type uploadResponse struct {
	Filename string `json:"filename"`
}

func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	files := r.MultipartForm.File["photo"]
	if len(files) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("missing file field 'photo'"))
		return
	}

	err := os.MkdirAll(s.opts.UploadDir, 0755)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	name, err := saveUpload(files[0], s.opts.UploadDir)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	writeJson(w, http.StatusOK, uploadResponse{Filename: name})
}

type syncResponse struct {
	Results []images.Result `json:"results"`
}

// syncPhotos stages the submitted pictures and deploys them to the file manager.
func (s *Server) syncPhotos(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}
	headers := r.MultipartForm.File["photos"]
	if len(headers) == 0 {
		s.fail(w, r, http.StatusBadRequest, errors.New("missing file field 'photos'"))
		return
	}

	dir, err := images.NewBatchDir(s.opts.StagingDir)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	defer func() {
		err := os.RemoveAll(dir)
		if err != nil {
			s.tel.ReportWarning(report_request, "remove staging dir", err)
		}
	}()

	files := make([]images.File, 0, len(headers))
	for _, header := range headers {
		name, err := saveUpload(header, dir)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, err)
			return
		}
		files = append(files, images.File{
			Path:        filepath.Join(dir, name),
			DisplayName: name,
		})
	}

	results, err := s.images.UploadImages(r.Context(), files, nil)
	if err != nil {
		s.fail(w, r, statusOf(err), err)
		return
	}
	writeJson(w, http.StatusOK, syncResponse{Results: results})
}
