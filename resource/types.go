package resource

import "errors"

var (
	ErrBadDescriptor = errors.New("bad file descriptor")
	ErrTooManyFiles  = errors.New("too many open files")
	ErrClosed        = errors.Join(ErrBadDescriptor, errors.New("descriptor table closed"))

	ErrNotSeekable    = errors.New("illegal seek")
	ErrInvalidWhence  = errors.New("invalid whence")
	ErrNegativeOffset = errors.New("negative offset")
	ErrOffsetOverflow = errors.New("offset overflow")
	ErrAccessMode     = errors.New("access mode does not permit transfer")
)

// DefaultCapacity is the number of descriptor slots in a new table (OPEN_MAX).
const DefaultCapacity = 128

// Event types for descriptor lifecycle notifications.
type EventType uint8

const (
	EventOpened EventType = iota
	EventDuplicated
	EventClosed
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventDuplicated:
		return "duplicated"
	case EventClosed:
		return "closed"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event represents a descriptor lifecycle event.
// Fd is -1 for EventReleased, which concerns the handle alone.
// Err carries the vnode close error of a released handle.
type Event struct {
	Handle *Handle
	Err    error
	Fd     int
	Type   EventType
}

// Observer receives notifications about descriptor lifecycle events.
// Observers are called without any table lock held.
type Observer interface {
	OnDescriptorEvent(Event)
}
