package filesystem

// Observer records filesystem operation metrics. The metrics package provides
// the implementation, which keeps this package free of a metrics import.
type Observer interface {
	// ObserveOperation records duration and error status for a filesystem operation.
	// volume is the resolved label ("papers", "tmp", "data").
	// operation is one of "stat", "open", "write", "rename", "remove".
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveStaleError(retryOp, volume string)
}

// nopObserver discards everything; it is the default so tests need no setup.
type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, float64, error) {}
func (nopObserver) ObserveRetryAttempt(string, string)                {}
func (nopObserver) ObserveRetrySuccess(string, string)                {}
func (nopObserver) ObserveRetryFailure(string, string)                {}
func (nopObserver) ObserveStaleError(string, string)                  {}

var defaultObserver Observer = nopObserver{}

// SetObserver sets the package-level metrics observer. A nil observer
// restores the no-op default.
func SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
