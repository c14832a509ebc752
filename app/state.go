package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/illmade-knight/random-user/pkg/users"
)

var (
	// ErrFetchFailed wraps every network, decode or store failure on the fetch path.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidMode is returned for an unknown mode name, and for selection
	// changes attempted outside delete mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidTab is returned for a tab other than male or female.
	ErrInvalidTab = errors.New("invalid tab")
	// ErrInvalidLayout is returned for a layout other than grid or list.
	ErrInvalidLayout = errors.New("invalid layout")
)

// Mode selects what tapping a user does: browse opens the detail view,
// delete toggles the user in the pending-delete set.
type Mode string

const (
	ModeBrowse Mode = "browse"
	ModeDelete Mode = "delete"
)

// Layout is how a renderer should arrange the active projection.
type Layout string

const (
	LayoutGrid Layout = "grid"
	LayoutList Layout = "list"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeBrowse, ModeDelete:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// ParseTab validates a tab name. Tabs are the two gender projections.
func ParseTab(s string) (users.Gender, error) {
	g, err := users.ParseGender(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTab, s)
	}
	return g, nil
}

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutGrid, LayoutList:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLayout, s)
}

// State is an immutable snapshot of the user list and its view settings.
// Male and Female are projections of Users; Pending only ever holds ids
// that are present in Users.
type State struct {
	Page    int          `json:"page"`
	Loading bool         `json:"loading"`
	Mode    Mode         `json:"mode"`
	Tab     users.Gender `json:"tab"`
	Layout  Layout       `json:"layout"`
	Users   []users.User `json:"users"`
	Male    []users.User `json:"male"`
	Female  []users.User `json:"female"`
	Pending []string     `json:"pending"`
}

// Active returns the projection for the selected tab.
func (s State) Active() []users.User {
	if s.Tab == users.GenderFemale {
		return s.Female
	}
	return s.Male
}

// IsPending reports whether id is staged for deletion.
func (s State) IsPending(id string) bool {
	for _, p := range s.Pending {
		if p == id {
			return true
		}
	}
	return false
}

// EventType names what changed.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventLoading      EventType = "loading"
	EventFetchFailed  EventType = "fetch_failed"
)

// Event is delivered to subscribers after every mutation. Err is set only
// for EventFetchFailed.
//
// Seq increases by one per event of an App and follows the order in which
// the snapshots were taken; subscribers receive events in Seq order.
type Event struct {
	ID    uuid.UUID
	Seq   uint64
	Type  EventType
	State State
	Err   error
}

type eventJSON struct {
	ID    string    `json:"id"`
	Seq   uint64    `json:"seq"`
	Type  EventType `json:"type"`
	State State     `json:"state"`
	Error string    `json:"error,omitempty"`
}

// MarshalJSON encodes Err as its message in the "error" field.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{ID: e.ID.String(), Seq: e.Seq, Type: e.Type, State: e.State}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	return json.Marshal(out)
}
