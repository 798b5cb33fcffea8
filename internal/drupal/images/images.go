// Package images pushes locally staged member photos to the Drupal file manager.
package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ESN-MoRe/members-manager/internal/components/assert"
	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	"github.com/ESN-MoRe/members-manager/internal/progress"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("members-manager/internal/drupal/images")

const (
	report_upload = "deployer.upload-images"
	report_file   = "deployer.upload-file"
)

type File struct {
	// Path of the local file, relative paths are resolved against the working directory.
	Path string
	// DisplayName is the filename the image gets upstream.
	DisplayName string
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

type Result struct {
	Filename string `json:"filename"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
}

type Sessions interface {
	GetSessionCookie(ctx context.Context, log progress.LogFunc) (string, error)
}

// Uploader opens an authenticated upload session in the file manager.
type Uploader interface {
	Begin(ctx context.Context, cookie string, log progress.LogFunc) (UploadSession, error)
}

type UploadSession interface {
	Upload(ctx context.Context, absPath, displayName string) error
	Close() error
}

type Deployer struct {
	sessions Sessions
	uploader Uploader
	tel      telemetry.API
}

func NewDeployer(sessions Sessions, uploader Uploader, tel telemetry.API) *Deployer {
	assert.NotNil(sessions, "sessions")
	assert.NotNil(uploader, "uploader")
	return &Deployer{
		sessions: sessions,
		uploader: uploader,
		tel:      telemetry.NewScopedAPI("drupal_images", telemetry.OrDefault(tel)),
	}
}

// UploadImages uploads every file once, in order. Only obtaining the session and
// opening the upload session fail the whole batch, a failing file is recorded in its
// Result and the batch moves on.
func (d *Deployer) UploadImages(ctx context.Context, files []File, log progress.LogFunc) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "UploadImages")
	defer span.End()
	span.SetAttributes(attribute.Int("files", len(files)))

	log.Log("Initializing browser for upload...")
	cookie, err := d.sessions.GetSessionCookie(ctx, log)
	if err != nil {
		d.tel.ReportBroken(report_upload, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to obtain session")
		return nil, fmt.Errorf("obtain session: %w", err)
	}

	session, err := d.uploader.Begin(ctx, cookie, log)
	if err != nil {
		d.tel.ReportBroken(report_upload, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open upload session")
		return nil, fmt.Errorf("open upload session: %w", err)
	}
	defer func() {
		err := session.Close()
		if err != nil {
			d.tel.ReportWarning(report_upload, "close upload session", err)
		}
	}()

	results := make([]Result, 0, len(files))
	for _, file := range files {
		name := file.DisplayName
		if name == "" {
			name = filepath.Base(file.Path)
		}

		log.Logf("Uploading %s...", name)
		err := d.uploadOne(ctx, session, file.Path, name)
		if err != nil {
			d.tel.ReportWarning(report_file, name, err)
			log.Logf("Failed: %s (%v)", name, err)
			results = append(results, Result{Filename: name, Status: StatusError, Error: err.Error()})
			continue
		}
		log.Logf("Uploaded: %s", name)
		results = append(results, Result{Filename: name, Status: StatusSuccess})
	}

	return results, nil
}

func (d *Deployer) uploadOne(ctx context.Context, session UploadSession, path, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upload panicked: %v", r)
		}
	}()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", absPath)
	}
	return session.Upload(ctx, absPath, name)
}

// NewBatchDir creates a uniquely named directory under root to stage one batch of
// uploaded files in.
func NewBatchDir(root string) (string, error) {
	id, err := random.String(12)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "batch-"+strings.ToLower(id))
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	return dir, nil
}
