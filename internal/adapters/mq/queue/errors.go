package queue

import "errors"

// ErrClosed is returned when putting a job on a closed queue.
var ErrClosed = errors.New("queue closed")
