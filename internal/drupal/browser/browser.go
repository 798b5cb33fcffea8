// Package browser drives a headless Chrome through the Drupal login form and the IMCE
// file manager, the two places upstream offers no usable HTTP API.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	DefaultBaseUrl   = "https://more.esn.it"
	DefaultLoginPath = "/?q=user/login"
	DefaultImcePath  = "/?q=user/1/imce"
)

type Options struct {
	BaseUrl   string
	LoginPath string
	ImcePath  string
	// ExecutablePath selects the Chrome binary, chromedp looks for one when empty.
	ExecutablePath string
	Headless       bool
	// StepTimeout bounds each navigation/element wait, UploadTimeout bounds the wait for
	// the preview of an uploaded file.
	StepTimeout   time.Duration
	UploadTimeout time.Duration
	// MinListedFiles is how many rows the members folder listing must show before
	// uploading, guarding against uploading into a folder that did not load.
	MinListedFiles int
	Telemetry      telemetry.API
}

type Browser struct {
	opts    Options
	baseUrl *url.URL
	tel     telemetry.API
}

func New(opts Options) (*Browser, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.ImcePath == "" {
		opts.ImcePath = DefaultImcePath
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 15 * time.Second
	}
	if opts.MinListedFiles < 0 {
		opts.MinListedFiles = 0
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Browser{
		opts:    opts,
		baseUrl: baseUrl,
		tel:     telemetry.NewScopedAPI("browser", telemetry.OrDefault(opts.Telemetry)),
	}, nil
}

func (b *Browser) pageUrl(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return b.opts.BaseUrl + path
	}
	return b.baseUrl.ResolveReference(ref).String()
}

// newTab launches a browser and returns the context of its first tab, cancel closes both.
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 800),
	)
	if b.opts.ExecutablePath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecutablePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// alerts opened by the file manager would otherwise block every later action
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(false))
				if err != nil {
					b.tel.ReportDebug("dismiss dialog", err)
				}
			}()
		}
	})

	return tabCtx, func() {
		cancelTab()
		cancelAlloc()
	}
}

// step runs actions with the step timeout, naming the step in the returned error.
func (b *Browser) step(ctx context.Context, name string, actions ...chromedp.Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, b.opts.StepTimeout)
	defer cancel()

	err := chromedp.Run(stepCtx, actions...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// nudgeAntibot produces the mouse and keyboard activity the antibot module waits for
// before it unlocks forms.
func nudgeAntibot() chromedp.Tasks {
	return chromedp.Tasks{
		chromedp.MouseEvent(input.MouseMoved, 100, 100),
		chromedp.KeyEvent(kb.Tab),
	}
}
