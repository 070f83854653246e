package telemetry

// API is how components report what happened to them. Components never log
// directly so tests can swap in a Recorder and assert on reports.
//
// Report ids name the component and operation that failed, not the line that
// failed: "fetcher.fetch-catalog", not "fetcher.fetch-catalog.http-get".
// Ids are lowercase, dots separate a component from its operation and dashes
// separate words. Details go in params.
type API interface {
	// ReportBroken reports a failure that someone should look at.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something unusual that was handled.
	ReportWarning(id string, params ...any)
	// ReportDebug reports information only useful while debugging.
	ReportDebug(msg string, params ...any)
	// ReportCount reports a point-in-time count of an event.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, usually the package name.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
