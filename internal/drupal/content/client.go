package content

import (
	"net/url"
	"time"

	"github.com/ESN-MoRe/members-manager/internal/components/telemetry"
	libtelemetry "github.com/ESN-MoRe/members-manager/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// newHttpClient returns a resty client whose transport retries connection errors and
// 5xx responses on its own, a failed login is handled a level above by the Fetcher.
func newHttpClient(baseUrl *url.URL, timeout time.Duration, requestsPerSecond float64, tel telemetry.API) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient.Transport = cloudflarebp.AddCloudFlareByPass(retryClient.HTTPClient.Transport)

	httpClient := resty.NewWithClient(retryClient.StandardClient())
	httpClient.SetBaseURL(baseUrl.String())
	httpClient.SetHeader("user-agent", BrowserUserAgent)
	httpClient.SetHeader("accept", "text/html,application/xhtml+xml")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(timeout)

	// max burst >= requests per second just means that no requests will be dropped
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)
	libtelemetry.TraceResty(httpClient, "members-manager/internal/drupal/content")

	return httpClient
}
