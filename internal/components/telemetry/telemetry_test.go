package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	tel := NewScopedAPI("outer", NewScopedAPI("inner", rec))

	tel.ReportWarning("fetcher.get-content", "boom")
	tel.ReportCount("cache.size", 3)

	reports := rec.Reports()
	require.Len(t, reports, 2)
	require.Equal(t, "inner:outer:fetcher.get-content", reports[0].Id)
	require.Equal(t, []any{int64(3)}, reports[1].Params)
	require.True(t, rec.Has("warning", "fetcher.get-content"))
	require.False(t, rec.Has("broken", "fetcher.get-content"))
}

func TestFormatHeadersRedacts(t *testing.T) {
	headers := http.Header{}
	headers.Set("cookie", "SSESSabc=secret")
	headers.Set("Accept", "text/html")

	require.Equal(t, "Accept: text/html\nCookie: <redacted 15 bytes>", formatHeaders(headers))
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	rec := &Recorder{}
	client := resty.New()
	InstrumentResty(client, rec)

	_, err := client.R().SetHeader("Cookie", "SSESSabc=secret").Get(srv.URL)
	require.NoError(t, err)

	require.True(t, rec.Has("debug", report_resty_request))
	require.True(t, rec.Has("debug", report_resty_response))
	for _, rep := range rec.Reports() {
		for _, p := range rep.Params {
			if s, ok := p.(string); ok {
				require.NotContains(t, s, "secret")
			}
		}
	}
}
