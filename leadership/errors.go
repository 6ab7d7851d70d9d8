package leadership

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on a running elector.
	ErrAlreadyStarted = errors.New("leadership: elector already started")

	// ErrNotStarted is returned by Stop on an elector that is not running.
	ErrNotStarted = errors.New("leadership: elector not started")
)
