// Package message defines the local control protocol spoken over the
// daemon's Unix socket. Every connection carries one Request followed by
// one Response, except watch, which keeps streaming Responses that each
// carry an Event until either side hangs up.
package message

import (
	"time"

	"go.klb.dev/clipbridge/internal/hub"
)

// Action names a control request.
type Action string

const (
	ActionStatus  Action = "status"
	ActionHistory Action = "history"
	ActionClear   Action = "clear"
	ActionDelete  Action = "delete"
	ActionSelect  Action = "select"
	ActionRestart Action = "restart"
	ActionQuit    Action = "quit"
	ActionWatch   Action = "watch"
)

// Request is sent by the client.
type Request struct {
	Action Action `cbor:"action"`
	// Text is the entry for delete and select.
	Text string `cbor:"text,omitempty"`
}

// Status describes the running daemon.
type Status struct {
	Version    string    `cbor:"version" json:"version"`
	PID        int       `cbor:"pid" json:"pid"`
	Started    time.Time `cbor:"started" json:"started"`
	Address    string    `cbor:"address,omitempty" json:"address,omitempty"`
	Port       int       `cbor:"port" json:"port"`
	Advertised bool      `cbor:"advertised" json:"advertised"`
	Restarting bool      `cbor:"restarting" json:"restarting"`
	Clipboard  string    `cbor:"clipboard" json:"clipboard"`
	Entries    int       `cbor:"entries" json:"entries"`
	Viewers    int       `cbor:"viewers" json:"viewers"`
}

// Response is sent by the daemon.
type Response struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`

	// Accepted is false when restart/quit found one already under way,
	// or delete found nothing to remove.
	Accepted bool       `cbor:"accepted,omitempty"`
	Status   *Status    `cbor:"status,omitempty"`
	Entries  []string   `cbor:"entries,omitempty"`
	Event    *hub.Event `cbor:"event,omitempty"`
}

// Fail builds an error response.
func Fail(err error) Response {
	return Response{OK: false, Error: err.Error()}
}
