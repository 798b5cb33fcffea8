package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ESN-MoRe/members-manager/internal/drupal/images"
	"github.com/ESN-MoRe/members-manager/internal/progress"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const report_upload = "browser.upload"

const (
	imceFrameSelector     = `iframe[src*="imce"]`
	membersFolderSelector = `a.folder[title="members"]`
	uploadTabSelector     = `#op-item-upload a[name=upload]`
	uploadPanelSelector   = `#op-content-upload`
	fileInputSelector     = `#edit-imce`
	uploadButtonSelector  = `#edit-upload`
)

type uploadSession struct {
	browser *Browser
	tab     context.Context
	close   context.CancelFunc
	frame   *cdp.Node
	log     progress.LogFunc
}

// Begin opens the IMCE file manager with the given session cookie and prepares the
// upload form of the members folder. The returned session owns a running browser until
// it is closed.
func (b *Browser) Begin(ctx context.Context, cookie string, log progress.LogFunc) (images.UploadSession, error) {
	// the browser outlives this call, it is bound to the session instead of ctx
	tab, cancel := b.newTab(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s := &uploadSession{browser: b, tab: tab, close: cancel, log: log}
	err := s.open(cookie)
	if err != nil {
		cancel()
		log.Logf("Error: %v", err)
		b.tel.ReportBroken(report_upload, err)
		return nil, err
	}
	return s, nil
}

func (s *uploadSession) open(cookie string) error {
	b := s.browser

	s.log.Log("Navigating to IMCE File Manager...")
	err := b.step(s.tab, "open file manager",
		network.SetCookies(ParseCookieString(cookie, b.baseUrl.Hostname())),
		chromedp.Navigate(b.pageUrl(b.opts.ImcePath)),
	)
	if err != nil {
		return err
	}

	var frames []*cdp.Node
	err = b.step(s.tab, "find file manager frame",
		chromedp.Nodes(imceFrameSelector, &frames, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("IMCE iframe not found")
	}
	s.frame = frames[0]

	s.log.Log("I am really not a bot...")
	err = b.step(s.tab, "antibot", nudgeAntibot())
	if err != nil {
		return err
	}

	s.log.Log(`Selecting "members" folder...`)
	err = b.step(s.tab, "select members folder",
		chromedp.WaitVisible(membersFolderSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
		chromedp.Click(membersFolderSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
	)
	if err != nil {
		return err
	}

	s.log.Log("Waiting for file list to load...")
	var listed bool
	err = b.step(s.tab, "wait for file list",
		chromedp.Poll(
			fmt.Sprintf(`document.querySelectorAll("#file-list > tbody:nth-child(1) tr").length >= %d`, b.opts.MinListedFiles),
			&listed,
			chromedp.WithPollingInFrame(s.frame),
		),
	)
	if err != nil {
		return err
	}

	var tabs []*cdp.Node
	err = b.step(s.tab, "find upload tab",
		chromedp.Nodes(uploadTabSelector, &tabs, chromedp.ByQuery, chromedp.AtLeast(0), chromedp.FromNode(s.frame)),
	)
	if err != nil {
		return err
	}
	if len(tabs) > 0 {
		err = b.step(s.tab, "open upload tab",
			chromedp.Click(uploadTabSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
			chromedp.WaitVisible(uploadPanelSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// previewShows is true once the preview image of the last upload points at name.
func previewShows(name string) string {
	quoted, _ := json.Marshal(name)
	return fmt.Sprintf(
		`(() => { const img = document.querySelector("#file-preview img"); return !!img && img.src.includes(%s); })()`,
		quoted,
	)
}

func (s *uploadSession) Upload(ctx context.Context, absPath, displayName string) error {
	b := s.browser

	tab, cancel := context.WithTimeout(s.tab, b.opts.StepTimeout+b.opts.UploadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var shown bool
	err := chromedp.Run(tab,
		chromedp.WaitReady(fileInputSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
		chromedp.SetUploadFiles(fileInputSelector, []string{absPath}, chromedp.ByQuery, chromedp.FromNode(s.frame)),
		chromedp.Click(uploadButtonSelector, chromedp.ByQuery, chromedp.FromNode(s.frame)),
		chromedp.Poll(
			previewShows(displayName),
			&shown,
			chromedp.WithPollingInFrame(s.frame),
			chromedp.WithPollingTimeout(b.opts.UploadTimeout),
		),
	)
	if err != nil {
		return fmt.Errorf("upload %s: %w", displayName, err)
	}
	return nil
}

func (s *uploadSession) Close() error {
	s.close()
	return nil
}
