package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

// restyHooks numbers the requests of one client so request and response debug lines can
// be paired up.
type restyHooks struct {
	tel API
	seq *atomic.Uint64
}

// InstrumentResty reports every request made through client. Requests and responses are
// debug reports, transport failures are broken reports unless the caller gave up.
func InstrumentResty(client *resty.Client, tel API) {
	h := restyHooks{tel: OrDefault(tel), seq: new(atomic.Uint64)}
	client.OnBeforeRequest(h.before)
	client.OnAfterResponse(h.after)
	client.OnError(h.failed)
}

type requestInfoKey struct{}

type requestInfo struct {
	seq     uint64
	started time.Time
}

func infoOf(req *resty.Request) (requestInfo, bool) {
	info, ok := req.Context().Value(requestInfoKey{}).(requestInfo)
	return info, ok
}

func (h restyHooks) before(_ *resty.Client, req *resty.Request) error {
	info := requestInfo{seq: h.seq.Add(1), started: time.Now()}
	req.SetContext(context.WithValue(req.Context(), requestInfoKey{}, info))
	h.tel.ReportDebug(report_resty_request, info.seq, req.Method, req.URL, formatHeaders(req.Header))
	return nil
}

func (h restyHooks) after(_ *resty.Client, res *resty.Response) error {
	info, ok := infoOf(res.Request)
	if !ok {
		return nil
	}
	h.tel.ReportDebug(report_resty_response, info.seq, res.Status(), time.Since(info.started).String())
	return nil
}

func (h restyHooks) failed(req *resty.Request, err error) {
	var elapsed time.Duration
	if info, ok := infoOf(req); ok {
		elapsed = time.Since(info.started)
	}
	if errors.Is(err, context.Canceled) {
		h.tel.ReportDebug(report_resty_response, "canceled", req.Method, req.URL, elapsed.String())
		return
	}
	h.tel.ReportBroken(report_resty_response, err, req.Method, req.URL, elapsed.String())
}

// session cookies and credentials never end up in logs
var redactedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		redact := slices.Contains(redactedHeaders, http.CanonicalHeaderKey(k))
		for _, v := range headers[k] {
			if redact {
				v = fmt.Sprintf("<redacted %d bytes>", len(v))
			}
			lines = append(lines, k+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}
