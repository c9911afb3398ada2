// Package resource provides per-process descriptor tables.
//
// A descriptor is a small non-negative integer naming a slot in a Table.
// Each bound slot refers to a Handle, the open-file record holding the
// vnode, the cursor and the access mode fixed at open time. Duplicated
// descriptors share one Handle, and with it the cursor.
//
// # Descriptor Table
//
//	table := resource.NewTable(resource.DefaultCapacity)
//
//	// Bind a handle to the lowest free descriptor
//	fd, err := table.Allocate(resource.NewHandle(vnode, "a.txt", vfs.O_RDWR))
//
//	// Borrow the handle for one operation
//	h, err := table.Get(fd)
//	n, err := h.Read(buf)
//	h.Return()
//
//	// Share it with descriptor 5, then close the original
//	table.Dup(fd, 5)
//	table.Remove(fd)
//
// # Reference Counting
//
// A Handle's refcount is the number of slots bound to it. Only the Table
// changes it: Allocate, Install and Dup add a reference, Remove, Dup over an
// occupied slot, Release and Close drop one. The vnode is closed exactly once,
// when the last reference is dropped. A handle that is still borrowed by an
// in-flight operation at that point is closed by its final Return instead.
//
// # Observers
//
// Register observers to track descriptor lifecycle events:
//
//	table.Subscribe(observer)
//
// EventOpened, EventDuplicated and EventClosed carry the descriptor.
// EventReleased fires once per handle, after its vnode is closed, with the
// close error if any. Observers run without the table lock held.
//
// # Teardown
//
// Close releases every slot and rejects later operations with ErrClosed,
// which matches ErrBadDescriptor under errors.Is.
package resource
