package browser

import (
	"context"
	"errors"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/drupal/session"
	"github.com/ESN-MoRe/members-manager/internal/progress"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const report_login = "browser.login"

// Login signs into Drupal with creds and returns the session cookies as a Cookie
// header value. The browser is closed before returning.
func (b *Browser) Login(ctx context.Context, creds session.Credentials, log progress.LogFunc) (string, error) {
	start := time.Now()
	tab, cancel := b.newTab(ctx)
	defer cancel()

	log.Log("Launching browser...")
	log.Log("Navigating to login page...")
	err := b.step(tab, "open login page",
		chromedp.Navigate(b.pageUrl(b.opts.LoginPath)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return "", b.fail(log, err)
	}

	log.Log("Bypassing antibot...")
	err = b.step(tab, "antibot", nudgeAntibot())
	if err != nil {
		return "", b.fail(log, err)
	}

	log.Log("Filling credentials...")
	err = b.step(tab, "fill credentials",
		chromedp.WaitVisible(".uncas-link", chromedp.ByQuery),
		chromedp.Click(".uncas-link", chromedp.ByQuery),
		chromedp.WaitVisible("#edit-name", chromedp.ByQuery),
		chromedp.SendKeys("#edit-name", creds.Username, chromedp.ByQuery),
		chromedp.SendKeys("#edit-pass", creds.Password, chromedp.ByQuery),
	)
	if err != nil {
		return "", b.fail(log, err)
	}

	log.Log("Submitting form...")
	// the password field only disappears once Drupal accepted the credentials
	err = b.step(tab, "submit login form",
		chromedp.Click("#edit-submit", chromedp.ByQuery),
		chromedp.WaitNotPresent("#edit-pass", chromedp.ByQuery),
	)
	if err != nil {
		return "", b.fail(log, err)
	}

	log.Log("Login successful! Extracting cookies...")
	var cookies []*network.Cookie
	err = b.step(tab, "read cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithUrls([]string{b.opts.BaseUrl}).Do(ctx)
		return err
	}))
	if err != nil {
		return "", b.fail(log, err)
	}
	if len(cookies) == 0 {
		return "", b.fail(log, errors.New("login produced no cookies"))
	}

	b.tel.ReportDebug("login finished", "duration", time.Since(start), "cookies", len(cookies))
	return FormatCookies(cookies), nil
}

func (b *Browser) fail(log progress.LogFunc, err error) error {
	log.Logf("Error: %v", err)
	b.tel.ReportBroken(report_login, err)
	return err
}
