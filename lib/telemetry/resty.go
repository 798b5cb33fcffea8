package telemetry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var redactedHeaders = map[string]bool{
	"Cookie":        true,
	"Set-Cookie":    true,
	"Authorization": true,
}

// TraceResty opens a span per request made through client. Request and response
// bodies are not recorded, credential headers are redacted.
func TraceResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(
			semconv.HTTPRequestMethodKey.String(res.Request.Method),
			semconv.URLFull(res.Request.URL),
			semconv.HTTPResponseStatusCode(res.StatusCode()),
		)
		span.SetAttributes(headerAttributes("request", res.Request.Header)...)
		span.SetAttributes(headerAttributes("response", res.Header())...)
		if res.StatusCode() >= 400 {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.SetAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
}

func headerAttributes(direction string, headers http.Header) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for header, values := range headers {
		value := strings.Join(values, ", ")
		if redactedHeaders[http.CanonicalHeaderKey(header)] {
			value = "<redacted>"
		}
		attrs = append(attrs, attribute.String(
			fmt.Sprintf("%s/header: %s", direction, header),
			value,
		))
	}
	return attrs
}
