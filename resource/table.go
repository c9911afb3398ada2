package resource

import (
	"sync"
)

// Table is a per-process descriptor table: a fixed number of slots, each
// empty or bound to a Handle. Every slot operation is atomic with respect to
// the others.
type Table struct {
	slots     []*Handle
	observers []Observer
	used      int
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table with capacity slots.
// A non-positive capacity selects DefaultCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		slots: make([]*Handle, capacity),
	}
}

// Allocate binds h to the lowest free slot and returns its descriptor.
func (t *Table) Allocate(h *Handle) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return -1, ErrClosed
	}

	for fd, slot := range t.slots {
		if slot != nil {
			continue
		}
		t.bindLocked(fd, h)
		t.mu.Unlock()

		t.notify(Event{Type: EventOpened, Fd: fd, Handle: h})
		return fd, nil
	}

	t.mu.Unlock()
	return -1, ErrTooManyFiles
}

// Get returns the handle bound to fd. The handle is borrowed: the caller
// must call Return on it when the operation using it is done.
func (t *Table) Get(fd int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.slotLocked(fd)
	if err != nil {
		return nil, err
	}
	h.borrow()
	return h, nil
}

// Install binds h to fd, releasing any handle previously bound there first.
func (t *Table) Install(fd int, h *Handle) error {
	t.mu.Lock()
	if err := t.checkLocked(fd); err != nil {
		t.mu.Unlock()
		return err
	}
	if t.slots[fd] == h {
		t.mu.Unlock()
		return nil
	}

	events := t.evictLocked(fd, nil)
	t.bindLocked(fd, h)
	t.mu.Unlock()

	t.notify(append(events, Event{Type: EventOpened, Fd: fd, Handle: h})...)
	return nil
}

// Clear empties fd without changing the bound handle's refcount. The slot's
// reference passes to the caller, who gives it up with Release.
func (t *Table) Clear(fd int) (*Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, err := t.slotLocked(fd)
	if err != nil {
		return nil, err
	}
	t.slots[fd] = nil
	t.used--
	return h, nil
}

// Release drops a reference obtained through Clear, closing the vnode when it
// was the last.
func (t *Table) Release(h *Handle) {
	t.mu.Lock()
	events := t.releaseLocked(h, nil)
	t.mu.Unlock()
	t.notify(events...)
}

// Remove empties fd and drops its reference. Removing the last reference to
// a handle closes its vnode, unless the handle is borrowed, in which case the
// final Return does. The vnode close error is reported through EventReleased.
func (t *Table) Remove(fd int) (*Handle, error) {
	t.mu.Lock()
	h, err := t.slotLocked(fd)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}

	events := t.evictLocked(fd, nil)
	t.mu.Unlock()

	t.notify(events...)
	return h, nil
}

// Dup binds newfd to the handle at oldfd, closing whatever newfd held first.
// Duplicating a descriptor onto itself changes nothing.
func (t *Table) Dup(oldfd, newfd int) (int, error) {
	t.mu.Lock()
	h, err := t.slotLocked(oldfd)
	if err != nil {
		t.mu.Unlock()
		return -1, err
	}
	if err := t.checkLocked(newfd); err != nil {
		t.mu.Unlock()
		return -1, err
	}
	if oldfd == newfd {
		t.mu.Unlock()
		return newfd, nil
	}

	events := t.evictLocked(newfd, nil)
	t.bindLocked(newfd, h)
	t.mu.Unlock()

	t.notify(append(events, Event{Type: EventDuplicated, Fd: newfd, Handle: h})...)
	return newfd, nil
}

// Close releases every slot. All later operations fail with ErrClosed.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true

	var events []Event
	for fd := range t.slots {
		events = t.evictLocked(fd, events)
	}
	t.mu.Unlock()

	t.notify(events...)
	return nil
}

// Closed reports whether Close has been called.
func (t *Table) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Len returns the number of bound slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Each calls fn for every bound slot in ascending order until fn returns false.
// It iterates over a snapshot, so fn may call back into the table.
func (t *Table) Each(fn func(fd int, h *Handle) bool) {
	type bound struct {
		h  *Handle
		fd int
	}

	t.mu.Lock()
	snapshot := make([]bound, 0, t.used)
	for fd, h := range t.slots {
		if h != nil {
			snapshot = append(snapshot, bound{fd: fd, h: h})
		}
	}
	t.mu.Unlock()

	for _, b := range snapshot {
		if !fn(b.fd, b.h) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) checkLocked(fd int) error {
	if t.closed {
		return ErrClosed
	}
	if fd < 0 || fd >= len(t.slots) {
		return ErrBadDescriptor
	}
	return nil
}

func (t *Table) slotLocked(fd int) (*Handle, error) {
	if err := t.checkLocked(fd); err != nil {
		return nil, err
	}
	h := t.slots[fd]
	if h == nil {
		return nil, ErrBadDescriptor
	}
	return h, nil
}

func (t *Table) bindLocked(fd int, h *Handle) {
	if h.owner == nil {
		h.owner = t
	}
	h.ref()
	t.slots[fd] = h
	t.used++
}

// evictLocked empties fd if bound and drops the slot's reference.
func (t *Table) evictLocked(fd int, events []Event) []Event {
	h := t.slots[fd]
	if h == nil {
		return events
	}
	t.slots[fd] = nil
	t.used--
	events = append(events, Event{Type: EventClosed, Fd: fd, Handle: h})
	return t.releaseLocked(h, events)
}

func (t *Table) releaseLocked(h *Handle, events []Event) []Event {
	if h.unref() {
		err := h.vnode.Close()
		events = append(events, Event{Type: EventReleased, Fd: -1, Handle: h, Err: err})
	}
	return events
}

func (t *Table) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, e := range events {
		for _, o := range t.observers {
			o.OnDescriptorEvent(e)
		}
	}
}
