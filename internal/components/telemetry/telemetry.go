// Package telemetry is the reporting surface of the editor's components. Components
// report through API instead of calling slog directly so tests can assert on what was
// reported with a Recorder.
package telemetry

// API reports component health.
//
// An id names the component and operation that broke, not the detail of how:
// "fetcher.get-content", not "fetcher.get-content-http-502". Details go in params.
// Ids are lowercase, dashes separate words of an operation and a dot separates the
// component from the operation. Scopes add a "namespace:" prefix.
type API interface {
	// ReportBroken reports a failure somebody should look at.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something suspicious that the component recovered from.
	ReportWarning(id string, params ...any)
	// ReportDebug is dropped unless verbose logging is on.
	ReportDebug(msg string, params ...any)
	// ReportCount reports a gauge, the value at a point in time.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id it reports with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: OrDefault(inner)}
}

func (s ScopedAPI) scoped(id string) string {
	return s.namespace + ":" + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}

// OrDefault returns tel, or a SlogAPI on the default logger when tel is nil.
func OrDefault(tel API) API {
	if tel == nil {
		return SlogAPI{}
	}
	return tel
}
