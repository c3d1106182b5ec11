package bolt

// StreamObserver is the triad of callbacks bound to one in-flight
// request: zero or more OnNext record deliveries followed by exactly one
// terminal, either OnCompleted or OnError. Nil callbacks are no-ops.
type StreamObserver struct {
	OnNext      func(record []interface{})
	OnCompleted func(metadata map[string]interface{})
	OnError     func(err error)
}

func (o StreamObserver) notifyNext(record []interface{}) {
	if o.OnNext != nil {
		o.OnNext(record)
	}
}

func (o StreamObserver) notifyCompleted(metadata map[string]interface{}) {
	if o.OnCompleted != nil {
		o.OnCompleted(metadata)
	}
}

func (o StreamObserver) notifyError(err error) {
	if o.OnError != nil {
		o.OnError(err)
	}
}
