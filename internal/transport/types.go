// Package transport defines the messaging-session boundary the dispatcher
// talks to. Pairing, reconnects and the wire protocol all live behind
// Session; the engine only ever gates on Connected() and performs lookups
// and sends.
package transport

import (
	"context"
	"errors"
	"time"
)

// State is the session's coarse connection state.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateLoggedOut    State = "logged_out"
)

// StateEvent is an asynchronous connection-state notification.
type StateEvent struct {
	State State
	At    time.Time
}

// PayloadKind discriminates what a Send actually puts on the wire.
type PayloadKind string

const (
	KindText  PayloadKind = "text"
	KindImage PayloadKind = "image"
	KindAudio PayloadKind = "audio"
)

var ErrBadPayload = errors.New("transport: payload must carry text or exactly one attachment")

// Payload is the message content of one campaign.
//
// At most one attachment kind may be set. An image is delivered with Text as
// its caption; audio is delivered as a voice note and Text is ignored; plain
// text is delivered only when no attachment is present.
type Payload struct {
	Text string

	Image     []byte
	ImageMIME string

	Audio     []byte
	AudioMIME string
}

// Kind returns the delivery primitive this payload maps to.
func (p Payload) Kind() PayloadKind {
	switch {
	case len(p.Image) > 0:
		return KindImage
	case len(p.Audio) > 0:
		return KindAudio
	default:
		return KindText
	}
}

// Validate rejects payloads that map to no primitive or to more than one.
func (p Payload) Validate() error {
	if len(p.Image) > 0 && len(p.Audio) > 0 {
		return ErrBadPayload
	}
	if len(p.Image) == 0 && len(p.Audio) == 0 && p.Text == "" {
		return ErrBadPayload
	}
	return nil
}

// Session is a long-lived connection to the messaging network.
//
// Implementations own their reconnect policy; callers observe it through
// Connected() and StateChanges(). AddressExists distinguishes "the lookup
// answered no" (false, nil) from "the lookup failed" (false, err); the
// caller must treat the latter as a delivery failure, never as a clean miss.
type Session interface {
	Connected() bool
	AddressExists(ctx context.Context, number string) (bool, error)
	Send(ctx context.Context, number string, p Payload) error
	StateChanges() <-chan StateEvent
	Close(ctx context.Context) error
}
