package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ESN-MoRe/members-manager/internal/drupal/content"
	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/ESN-MoRe/members-manager/internal/members"
	"github.com/ESN-MoRe/members-manager/internal/pagemodel"
	"github.com/ESN-MoRe/members-manager/internal/progress"
	"github.com/stretchr/testify/require"
)

type stubContent struct {
	mutex   sync.Mutex
	html    string
	err     error
	options []int
}

func (s *stubContent) GetContent(ctx context.Context, log progress.LogFunc, opts ...content.GetOption) (string, error) {
	s.mutex.Lock()
	s.options = append(s.options, len(opts))
	s.mutex.Unlock()

	log.Log("logging in")
	return s.html, s.err
}

type stubImages struct {
	files  []images.File
	exists []bool
	err    error
}

func (s *stubImages) UploadImages(ctx context.Context, files []images.File, log progress.LogFunc) ([]images.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.files = files
	var results []images.Result
	for _, f := range files {
		_, err := os.Stat(f.Path)
		s.exists = append(s.exists, err == nil)
		results = append(results, images.Result{Filename: f.DisplayName, Status: images.StatusSuccess})
	}
	return results, nil
}

type fixture struct {
	content *stubContent
	images  *stubImages
	opts    Options
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	html, err := os.ReadFile("../pagemodel/testdata/about-us.html")
	require.NoError(t, err)

	f := &fixture{
		content: &stubContent{html: string(html)},
		images:  &stubImages{},
		opts: Options{
			UploadDir:  t.TempDir(),
			StagingDir: t.TempDir(),
		},
	}
	server := New(f.content, members.NewService(f.content, nil), f.images, f.opts)
	f.handler = server.Router()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, target, field string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, contents := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func readEvents(t *testing.T, body io.Reader) []progress.Event {
	t.Helper()
	var events []progress.Event
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		require.True(t, ok, "unexpected line %q", line)
		var ev progress.Event
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[healthResponse](t, rec).Status)
}

func TestStreamAboutUs(t *testing.T) {
	f := newFixture(t)
	f.content.html = "<p>about us</p>"

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/drupal/stream-about-us", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, []progress.Event{
		{Type: progress.EventLog, Message: "logging in"},
		{Type: progress.EventResult, Content: "<p>about us</p>"},
	}, readEvents(t, rec.Body))

	f.do(httptest.NewRequest(http.MethodGet, "/v1/drupal/stream-about-us?refresh=true", nil))
	require.Equal(t, []int{0, 1}, f.content.options)
}

func TestStreamAboutUsError(t *testing.T) {
	f := newFixture(t)
	f.content.err = errors.New("login failed: timeout")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/drupal/stream-about-us", nil))
	require.Equal(t, []progress.Event{
		{Type: progress.EventLog, Message: "logging in"},
		{Type: progress.EventError, Message: "login failed: timeout"},
	}, readEvents(t, rec.Body))
}

func TestGetMembers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[pagemodel.State](t, rec)
	require.Len(t, state[pagemodel.Active], 2)
	require.Equal(t, "Anna Bianchi", state[pagemodel.Active][0].Name)

	f.content.err = errors.New("upstream down")
	rec = f.do(httptest.NewRequest(http.MethodGet, "/v1/members", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "upstream down", decode[errorResponse](t, rec).Error)
}

func TestPreviewMembers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(t, http.MethodPost, "/v1/members", pagemodel.State{
		pagemodel.Alumni: {{Name: "Franco Marino", Role: "Alumnus"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[previewResponse](t, rec)
	require.True(t, res.Success)
	require.Equal(t, res.NewHtml, res.HtmlPreview)
	require.Equal(t, f.content.html, res.OldHtml)
	require.Contains(t, res.NewHtml, ">Franco Marino</h3>")
	require.Equal(t, []string{"franco_marino.jpg"}, res.Images.ToUpload)
	require.Empty(t, res.Images.ToDelete)
	require.Equal(t, []string{"Franco Marino"}, res.Members.Added)
}

func TestPreviewMembersInvalid(t *testing.T) {
	f := newFixture(t)

	testCases := []struct {
		name string
		body any
	}{
		{name: "duplicate", body: pagemodel.State{
			pagemodel.Active: {{Name: "Anna"}},
			pagemodel.Alumni: {{Name: "anna"}},
		}},
		{name: "already in a kept section", body: pagemodel.State{
			pagemodel.Alumni: {{Name: "Anna Bianchi"}},
		}},
		{name: "unknown section", body: map[string]any{"STAFF": []any{}}},
		{name: "not an object", body: []string{"BOARD"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(jsonRequest(t, http.MethodPost, "/v1/members", tc.body))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotEmpty(t, decode[errorResponse](t, rec).Error)
		})
	}
}

func TestRollBoardYear(t *testing.T) {
	f := newFixture(t)

	rec := f.do(jsonRequest(t, http.MethodPost, "/v1/members/board-year", boardYearRequest{Year: "2027-2028"}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode[boardYearResponse](t, rec).NewHtml, ">Board 2027-2028</h2>")

	rec = f.do(jsonRequest(t, http.MethodPost, "/v1/members/board-year", boardYearRequest{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.content.html = "<p>no sections</p>"
	rec = f.do(jsonRequest(t, http.MethodPost, "/v1/members/board-year", boardYearRequest{Year: "2030"}))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUploadPhoto(t *testing.T) {
	f := newFixture(t)

	rec := f.do(multipartRequest(t, "/v1/members/upload", "photo", map[string]string{
		"../../anna_bianchi.jpg": "jpeg bytes",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anna_bianchi.jpg", decode[uploadResponse](t, rec).Filename)

	stored, err := os.ReadFile(filepath.Join(f.opts.UploadDir, "anna_bianchi.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg bytes", string(stored))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/members-img/anna_bianchi.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "jpeg bytes", rec.Body.String())

	rec = f.do(multipartRequest(t, "/v1/members/upload", "other", map[string]string{"a.jpg": "x"}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncPhotos(t *testing.T) {
	f := newFixture(t)

	rec := f.do(multipartRequest(t, "/v1/members/sync", "photos", map[string]string{
		"anna_bianchi.jpg": "a",
		"bob_verdi.jpg":    "b",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[syncResponse](t, rec)
	require.Len(t, res.Results, 2)
	require.Len(t, f.images.files, 2)
	require.Equal(t, []bool{true, true}, f.images.exists)
	for _, file := range f.images.files {
		require.Equal(t, filepath.Base(file.Path), file.DisplayName)
	}

	// staged files are removed once the batch is done
	entries, err := os.ReadDir(f.opts.StagingDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	f.images.err = errors.New("login failed")
	rec = f.do(multipartRequest(t, "/v1/members/sync", "photos", map[string]string{"a.jpg": "a"}))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSafeFilename(t *testing.T) {
	name, err := safeFilename(`C:\photos\anna.jpg`)
	require.NoError(t, err)
	require.Equal(t, "anna.jpg", name)

	for _, bad := range []string{"", "..", "/", " "} {
		_, err := safeFilename(bad)
		require.Error(t, err, bad)
	}
}
