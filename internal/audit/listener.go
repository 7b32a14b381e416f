package audit

// Listener is the reporting sink. The pipeline calls it from one goroutine
// at a time.
type Listener interface {
	AuditStarted()
	FileStarted(path string)
	// AddEvent receives an accepted event and its formatted line.
	AddEvent(ev *Event, formatted string)
	// AddException reports a module failure that aborted a file.
	AddException(path string, err error)
	FileFinished(path string)
	// AuditFinished flushes the listener.
	AuditFinished() error
}

// NopListener implements Listener with no-ops; embed it to override a subset.
type NopListener struct{}

func (NopListener) AuditStarted()              {}
func (NopListener) FileStarted(string)         {}
func (NopListener) AddEvent(*Event, string)    {}
func (NopListener) AddException(string, error) {}
func (NopListener) FileFinished(string)        {}
func (NopListener) AuditFinished() error       { return nil }
