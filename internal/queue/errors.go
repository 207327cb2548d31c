package queue

// Error is a sentinel queue error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrUnavailable wraps transport failures talking to the queue service.
	ErrUnavailable = Error("queue unavailable")
)
