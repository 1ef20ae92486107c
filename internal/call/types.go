// Package call coordinates simulated two-party calls. Each call is held as
// a pair of mirrored records, one per participant, advanced together through
// a closed state machine.
package call

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrMissingParticipant = errors.New("missing participant id")
	ErrSelfCall           = errors.New("caller and callee are the same participant")
	ErrInvalidType        = errors.New("invalid call type")
	ErrInvalidDirection   = errors.New("invalid call direction")
)

// Type is the media kind of a call.
type Type string

const (
	Audio Type = "audio"
	Video Type = "video"
)

// Label is the capitalized form used in call-log messages.
func (t Type) Label() string {
	if t == Video {
		return "Video"
	}
	return "Audio"
}

// Status is a call's position in the state machine.
type Status string

const (
	Idle      Status = "idle"
	Dialing   Status = "dialing"
	Ringing   Status = "ringing"
	Connected Status = "connected"
	Ended     Status = "ended"
)

// validTransitions lists every allowed status change. Ended is terminal;
// the record is then removed from the map.
var validTransitions = map[Status][]Status{
	Idle:      {Dialing, Ringing},
	Dialing:   {Ringing, Ended},
	Ringing:   {Connected, Ended},
	Connected: {Ended},
	Ended:     {},
}

// CanTransition reports whether s may move to to.
func (s Status) CanTransition(to Status) bool {
	return slices.Contains(validTransitions[s], to)
}

// Direction tells which side placed the call.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

func (d Direction) opposite() Direction {
	if d == Outgoing {
		return Incoming
	}
	return Outgoing
}

// Call is one participant's view of a call. Timestamps are unix
// milliseconds; zero means unset.
type Call struct {
	ID            string    `json:"id"`
	WithContactID string    `json:"withContactId"`
	Type          Type      `json:"type"`
	Status        Status    `json:"status"`
	Direction     Direction `json:"direction"`
	StartedAt     int64     `json:"startedAt,omitempty"`
	AcceptedAt    int64     `json:"acceptedAt,omitempty"`
	EndedAt       int64     `json:"endedAt,omitempty"`
	MicMuted      bool      `json:"micMuted"`
	CamOff        bool      `json:"camOff"`
	Docked        bool      `json:"docked"`
}

// Change is the payload of call.changed events.
type Change struct {
	ParticipantID string `json:"participantId"`
	Call          Call   `json:"call"`
}

// Removal is the payload of call.removed events.
type Removal struct {
	ParticipantID string `json:"participantId"`
	CallID        string `json:"callId"`
}

// Tick is the payload of call.tick events.
type Tick struct {
	CallID  string `json:"callId"`
	Seconds int    `json:"seconds"`
}

// CheckMirror verifies that every record in calls has a partner record at
// its peer's key with the same id, pointing back, in the opposite
// direction. Statuses must match except during the dial window, where the
// caller may still be dialing while the callee rings.
func CheckMirror(calls map[string]Call) error {
	for pid, rec := range calls {
		peer, ok := calls[rec.WithContactID]
		switch {
		case !ok:
			return fmt.Errorf("call %s at %q: no record at peer %q", rec.ID, pid, rec.WithContactID)
		case peer.ID != rec.ID:
			return fmt.Errorf("call %s at %q: peer %q holds call %s", rec.ID, pid, rec.WithContactID, peer.ID)
		case peer.WithContactID != pid:
			return fmt.Errorf("call %s at %q: peer %q points at %q", rec.ID, pid, rec.WithContactID, peer.WithContactID)
		case peer.Direction != rec.Direction.opposite():
			return fmt.Errorf("call %s at %q: both sides are %s", rec.ID, pid, rec.Direction)
		case peer.Status != rec.Status && !dialWindow(rec.Status, peer.Status):
			return fmt.Errorf("call %s at %q: status %s, peer %s", rec.ID, pid, rec.Status, peer.Status)
		}
	}
	return nil
}

func dialWindow(a, b Status) bool {
	return (a == Dialing && b == Ringing) || (a == Ringing && b == Dialing)
}

// FormatDuration renders whole seconds as MM:SS.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
