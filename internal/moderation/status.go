package moderation

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the moderation state of a comment.
type Status string

const (
	StatusPending Status = "pending"
	StatusVisible Status = "visible"
	StatusHidden  Status = "hidden"
)

var (
	// ErrInvalidStatus indicates a value outside the pending/visible/hidden set.
	ErrInvalidStatus = errors.New("moderation: invalid status")
	// ErrIllegalTransition indicates a move the state machine does not permit.
	ErrIllegalTransition = errors.New("moderation: illegal transition")
)

var allowedStatuses = map[Status]struct{}{
	StatusPending: {},
	StatusVisible: {},
	StatusHidden:  {},
}

// transitions lists, per target, the statuses a moderator may move a record from.
var transitions = map[Status][]Status{
	StatusPending: {StatusPending, StatusVisible, StatusHidden},
	StatusVisible: {StatusPending, StatusVisible, StatusHidden},
	StatusHidden:  {StatusPending, StatusVisible, StatusHidden},
}

// ParseStatus validates raw input and returns the matching Status.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allowedStatuses[candidate]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return candidate, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := allowedStatuses[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// InitialStatus is the status assigned at creation.
func InitialStatus(autoVisible bool) Status {
	if autoVisible {
		return StatusVisible
	}
	return StatusPending
}

// PubliclyReadable reports whether a record in this status may appear in public reads.
func (s Status) PubliclyReadable() bool {
	return s == StatusVisible
}

// Sources returns the statuses from which a record may be moved to target.
func Sources(target Status) ([]Status, error) {
	sources, ok := transitions[target]
	if !ok {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidStatus, target)
	}
	return append([]Status(nil), sources...), nil
}

// Transition validates a moderator-requested move from one status to another.
// There is no terminal state and re-applying the current status is accepted.
func Transition(from, to Status) (Status, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: current %q", ErrInvalidStatus, from)
	}
	sources, err := Sources(to)
	if err != nil {
		return "", err
	}
	for _, source := range sources {
		if source == from {
			return to, nil
		}
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
