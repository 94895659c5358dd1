package campaign

import "errors"

// Start rejections. All are synchronous; none leave engine state behind.
var (
	// ErrAlreadyRunning: a second Start while a run is in flight is refused,
	// never queued or merged.
	ErrAlreadyRunning = errors.New("campaign already running")
	// ErrNotConnected: the transport session must report connected before a
	// run may begin.
	ErrNotConnected = errors.New("transport session not connected")
	// ErrNoContacts: an empty (post-validation) contact list is rejected at
	// call time, not mid-loop.
	ErrNoContacts = errors.New("contact list is empty")
)
