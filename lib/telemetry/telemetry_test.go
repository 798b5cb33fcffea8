package telemetry

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpoints(t *testing.T) {
	tel, err := Setup(context.Background(), "members-manager-test", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestHeaderAttributesRedactCredentials(t *testing.T) {
	headers := http.Header{}
	headers.Set("Cookie", "SESS123=secret")
	headers.Set("User-Agent", "Mozilla/5.0")

	values := map[string]string{}
	for _, attr := range headerAttributes("request", headers) {
		values[string(attr.Key)] = attr.Value.AsString()
	}
	require.Equal(t, "<redacted>", values["request/header: Cookie"])
	require.Equal(t, "Mozilla/5.0", values["request/header: User-Agent"])
}

func TestReadPerfStats(t *testing.T) {
	stats := ReadPerfStats(context.Background())
	require.Positive(t, stats.GoroutineCount)
	require.GreaterOrEqual(t, stats.UptimeSeconds, int64(0))
}
