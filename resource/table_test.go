package resource

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wippyai/wasm-kernel/uio"
	"github.com/wippyai/wasm-kernel/vfs"
)

type testObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *testObserver) OnDescriptorEvent(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *testObserver) types() []EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]EventType, len(o.events))
	for i, e := range o.events {
		out[i] = e.Type
	}
	return out
}

// countingVnode records closes and any use after close.
type countingVnode struct {
	closes   atomic.Int32
	afterUse atomic.Int32
	closeErr error
	seekable bool
	size     int64
}

func (v *countingVnode) use() {
	if v.closes.Load() > 0 {
		v.afterUse.Add(1)
	}
}

func (v *countingVnode) Read(u *uio.Uio) error {
	v.use()
	u.Advance(u.Resid)
	return nil
}

func (v *countingVnode) Write(u *uio.Uio) error {
	v.use()
	u.Advance(u.Resid)
	return nil
}

func (v *countingVnode) Stat() (vfs.Stat, error) {
	v.use()
	return vfs.Stat{Size: v.size}, nil
}

func (v *countingVnode) IsSeekable() bool { return v.seekable }

func (v *countingVnode) Close() error {
	v.closes.Add(1)
	return v.closeErr
}

func newTestHandle(flags int) (*Handle, *countingVnode) {
	vn := &countingVnode{seekable: true}
	return NewHandle(vn, "test", flags), vn
}

// checkRefcounts verifies that every handle's refcount equals the number of
// slots bound to it.
func checkRefcounts(t *testing.T, table *Table) {
	t.Helper()
	counts := make(map[*Handle]int)
	table.Each(func(fd int, h *Handle) bool {
		counts[h]++
		return true
	})
	for h, n := range counts {
		if h.Refcount() != n {
			t.Errorf("handle %p refcount = %d, bound to %d slots", h, h.Refcount(), n)
		}
	}
}

func TestTable_AllocateLowestFree(t *testing.T) {
	table := NewTable(8)

	for want := 0; want < 4; want++ {
		h, _ := newTestHandle(vfs.O_RDONLY)
		fd, err := table.Allocate(h)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if fd != want {
			t.Fatalf("Allocate = %d, want %d", fd, want)
		}
	}

	if _, err := table.Remove(1); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Remove(2); err != nil {
		t.Fatal(err)
	}

	h, _ := newTestHandle(vfs.O_RDONLY)
	if fd, _ := table.Allocate(h); fd != 1 {
		t.Errorf("Allocate after close = %d, want 1", fd)
	}
	h, _ = newTestHandle(vfs.O_RDONLY)
	if fd, _ := table.Allocate(h); fd != 2 {
		t.Errorf("Allocate after close = %d, want 2", fd)
	}
	if table.Len() != 4 || table.Cap() != 8 {
		t.Errorf("Len=%d Cap=%d, want 4 8", table.Len(), table.Cap())
	}
	checkRefcounts(t, table)
}

func TestTable_DefaultCapacity(t *testing.T) {
	if c := NewTable(0).Cap(); c != DefaultCapacity {
		t.Errorf("Cap = %d, want %d", c, DefaultCapacity)
	}
}

func TestTable_Exhaustion(t *testing.T) {
	table := NewTable(3)
	for i := 0; i < 3; i++ {
		h, _ := newTestHandle(vfs.O_RDONLY)
		if _, err := table.Allocate(h); err != nil {
			t.Fatal(err)
		}
	}

	h, vn := newTestHandle(vfs.O_RDONLY)
	fd, err := table.Allocate(h)
	if !errors.Is(err, ErrTooManyFiles) || fd != -1 {
		t.Fatalf("Allocate on full table = %d, %v", fd, err)
	}
	if h.Refcount() != 0 {
		t.Errorf("failed allocation left refcount %d", h.Refcount())
	}
	if err := h.Discard(); err != nil || vn.closes.Load() != 1 {
		t.Errorf("Discard: err=%v closes=%d", err, vn.closes.Load())
	}
	if err := h.Discard(); err != nil || vn.closes.Load() != 1 {
		t.Error("second Discard should not close again")
	}
}

func TestTable_GetInvalid(t *testing.T) {
	table := NewTable(4)
	h, _ := newTestHandle(vfs.O_RDONLY)
	_ = table.Install(2, h)

	for _, fd := range []int{-1, 0, 3, 4, 1 << 30} {
		if _, err := table.Get(fd); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("Get(%d) err = %v, want ErrBadDescriptor", fd, err)
		}
	}

	got, err := table.Get(2)
	if err != nil || got != h {
		t.Fatalf("Get(2) = %v, %v", got, err)
	}
	got.Return()
}

func TestTable_RemoveTwice(t *testing.T) {
	table := NewTable(4)
	h, vn := newTestHandle(vfs.O_RDONLY)
	fd, _ := table.Allocate(h)

	if _, err := table.Remove(fd); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if vn.closes.Load() != 1 {
		t.Fatalf("closes = %d, want 1", vn.closes.Load())
	}
	if _, err := table.Remove(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("second Remove err = %v, want ErrBadDescriptor", err)
	}
	if _, err := table.Remove(99); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Remove(99) err = %v", err)
	}
	if vn.closes.Load() != 1 {
		t.Errorf("closes = %d, want 1", vn.closes.Load())
	}
}

func TestTable_Dup(t *testing.T) {
	t.Run("shares handle", func(t *testing.T) {
		table := NewTable(8)
		h, vn := newTestHandle(vfs.O_RDWR)
		fd, _ := table.Allocate(h)

		got, err := table.Dup(fd, 5)
		if err != nil || got != 5 {
			t.Fatalf("Dup = %d, %v", got, err)
		}
		if h.Refcount() != 2 {
			t.Errorf("refcount = %d, want 2", h.Refcount())
		}
		checkRefcounts(t, table)

		_, _ = table.Remove(fd)
		if vn.closes.Load() != 0 {
			t.Error("vnode closed while descriptor 5 still bound")
		}
		_, _ = table.Remove(5)
		if vn.closes.Load() != 1 {
			t.Errorf("closes = %d, want 1", vn.closes.Load())
		}
	})

	t.Run("onto itself", func(t *testing.T) {
		table := NewTable(8)
		h, vn := newTestHandle(vfs.O_RDWR)
		fd, _ := table.Allocate(h)
		if _, err := h.Write(make([]byte, 3)); err != nil {
			t.Fatal(err)
		}

		got, err := table.Dup(fd, fd)
		if err != nil || got != fd {
			t.Fatalf("Dup = %d, %v", got, err)
		}
		if h.Refcount() != 1 || h.Offset() != 3 || vn.closes.Load() != 0 {
			t.Errorf("refcount=%d offset=%d closes=%d", h.Refcount(), h.Offset(), vn.closes.Load())
		}
	})

	t.Run("onto occupied slot", func(t *testing.T) {
		table := NewTable(8)
		a, _ := newTestHandle(vfs.O_RDONLY)
		b, bvn := newTestHandle(vfs.O_RDONLY)
		fa, _ := table.Allocate(a)
		fb, _ := table.Allocate(b)

		if _, err := table.Dup(fa, fb); err != nil {
			t.Fatal(err)
		}
		if bvn.closes.Load() != 1 || b.Refcount() != 0 {
			t.Errorf("previous occupant closes=%d refcount=%d", bvn.closes.Load(), b.Refcount())
		}
		got, _ := table.Get(fb)
		if got != a {
			t.Error("target slot not bound to source handle")
		}
		got.Return()
		checkRefcounts(t, table)
	})

	t.Run("onto slot already sharing handle", func(t *testing.T) {
		table := NewTable(8)
		h, vn := newTestHandle(vfs.O_RDONLY)
		fd, _ := table.Allocate(h)
		_, _ = table.Dup(fd, 3)
		_, _ = table.Dup(fd, 3)
		if h.Refcount() != 2 || vn.closes.Load() != 0 {
			t.Errorf("refcount=%d closes=%d", h.Refcount(), vn.closes.Load())
		}
	})

	t.Run("invalid descriptors", func(t *testing.T) {
		table := NewTable(4)
		h, _ := newTestHandle(vfs.O_RDONLY)
		fd, _ := table.Allocate(h)

		cases := [][2]int{{1, 2}, {-1, 2}, {fd, 4}, {fd, -1}, {9, fd}}
		for _, c := range cases {
			if _, err := table.Dup(c[0], c[1]); !errors.Is(err, ErrBadDescriptor) {
				t.Errorf("Dup(%d, %d) err = %v", c[0], c[1], err)
			}
		}
		if h.Refcount() != 1 {
			t.Errorf("refcount = %d, want 1", h.Refcount())
		}
	})
}

func TestTable_Install(t *testing.T) {
	table := NewTable(4)
	a, avn := newTestHandle(vfs.O_WRONLY)
	b, _ := newTestHandle(vfs.O_WRONLY)

	if err := table.Install(1, a); err != nil {
		t.Fatal(err)
	}
	if err := table.Install(1, a); err != nil || a.Refcount() != 1 || avn.closes.Load() != 0 {
		t.Errorf("reinstall: err=%v refcount=%d closes=%d", err, a.Refcount(), avn.closes.Load())
	}
	if err := table.Install(1, b); err != nil {
		t.Fatal(err)
	}
	if avn.closes.Load() != 1 {
		t.Errorf("replaced handle not released")
	}
	if err := table.Install(4, b); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Install(4) err = %v", err)
	}
	checkRefcounts(t, table)
}

func TestTable_ClearRelease(t *testing.T) {
	table := NewTable(4)
	h, vn := newTestHandle(vfs.O_RDONLY)
	fd, _ := table.Allocate(h)

	got, err := table.Clear(fd)
	if err != nil || got != h {
		t.Fatalf("Clear = %v, %v", got, err)
	}
	if h.Refcount() != 1 || vn.closes.Load() != 0 || table.Len() != 0 {
		t.Errorf("Clear changed refcount=%d closes=%d len=%d", h.Refcount(), vn.closes.Load(), table.Len())
	}
	if _, err := table.Clear(fd); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("second Clear err = %v", err)
	}

	table.Release(h)
	if vn.closes.Load() != 1 {
		t.Errorf("Release did not close vnode")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable(8)
	obs := &testObserver{}
	table.Subscribe(obs)

	a, avn := newTestHandle(vfs.O_RDONLY)
	b, bvn := newTestHandle(vfs.O_RDONLY)
	fa, _ := table.Allocate(a)
	_, _ = table.Allocate(b)
	_, _ = table.Dup(fa, 6)

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if avn.closes.Load() != 1 || bvn.closes.Load() != 1 {
		t.Errorf("closes a=%d b=%d, want 1 1", avn.closes.Load(), bvn.closes.Load())
	}
	if table.Len() != 0 || !table.Closed() {
		t.Errorf("Len=%d Closed=%v", table.Len(), table.Closed())
	}

	released := 0
	for _, typ := range obs.types() {
		if typ == EventReleased {
			released++
		}
	}
	if released != 2 {
		t.Errorf("released events = %d, want 2", released)
	}

	h, _ := newTestHandle(vfs.O_RDONLY)
	if _, err := table.Allocate(h); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Allocate after Close err = %v", err)
	}
	if _, err := table.Get(0); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close err = %v", err)
	}
	if _, err := table.Dup(0, 1); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Dup after Close err = %v", err)
	}
	if err := table.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close err = %v", err)
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable(8)
	obs := &testObserver{}
	table.Subscribe(obs)

	closeErr := errors.New("flush failed")
	h, vn := newTestHandle(vfs.O_RDONLY)
	vn.closeErr = closeErr

	fd, _ := table.Allocate(h)
	_, _ = table.Dup(fd, 3)
	_, _ = table.Remove(fd)
	_, _ = table.Remove(3)

	want := []EventType{EventOpened, EventDuplicated, EventClosed, EventClosed, EventReleased}
	got := obs.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
	last := obs.events[len(obs.events)-1]
	if !errors.Is(last.Err, closeErr) || last.Fd != -1 || last.Handle != h {
		t.Errorf("released event = %+v", last)
	}

	table.Unsubscribe(obs)
	h2, _ := newTestHandle(vfs.O_RDONLY)
	_, _ = table.Allocate(h2)
	if len(obs.types()) != len(want) {
		t.Error("should not receive events after Unsubscribe")
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable(8)
	h, _ := newTestHandle(vfs.O_RDONLY)
	_ = table.Install(4, h)
	_, _ = table.Dup(4, 1)

	var fds []int
	table.Each(func(fd int, got *Handle) bool {
		fds = append(fds, fd)
		// callbacks may re-enter the table
		_ = table.Len()
		return true
	})
	if len(fds) != 2 || fds[0] != 1 || fds[1] != 4 {
		t.Errorf("Each visited %v, want [1 4]", fds)
	}

	count := 0
	table.Each(func(int, *Handle) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Each did not stop early: %d", count)
	}
}

func TestTable_CloseWhileBorrowed(t *testing.T) {
	table := NewTable(4)
	obs := &testObserver{}
	table.Subscribe(obs)
	h, vn := newTestHandle(vfs.O_RDONLY)
	fd, _ := table.Allocate(h)

	borrowed, err := table.Get(fd)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = table.Remove(fd)

	if vn.closes.Load() != 0 {
		t.Fatal("vnode closed while borrowed")
	}
	if h.Refcount() != 0 {
		t.Errorf("refcount = %d, want 0 with no bound slots", h.Refcount())
	}
	if _, err := borrowed.Read(make([]byte, 4)); err != nil {
		t.Fatalf("Read on borrowed handle: %v", err)
	}

	borrowed.Return()
	if vn.closes.Load() != 1 || !h.Released() {
		t.Errorf("closes = %d after final Return", vn.closes.Load())
	}
	borrowed.Return()
	if vn.closes.Load() != 1 {
		t.Error("extra Return closed again")
	}

	types := obs.types()
	if types[len(types)-1] != EventReleased {
		t.Errorf("last event = %v, want released", types[len(types)-1])
	}
}

func TestTable_ConcurrentReadClose(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		table := NewTable(8)
		h, vn := newTestHandle(vfs.O_RDWR)
		fd, _ := table.Allocate(h)
		_, _ = table.Dup(fd, 1)

		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func(fd int) {
				defer wg.Done()
				buf := make([]byte, 8)
				for i := 0; i < 100; i++ {
					h, err := table.Get(fd)
					if err != nil {
						return
					}
					_, _ = h.Read(buf)
					h.Return()
				}
			}(r % 2)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = table.Remove(0)
			_, _ = table.Remove(1)
		}()
		wg.Wait()

		if n := vn.afterUse.Load(); n != 0 {
			t.Fatalf("vnode used %d times after close", n)
		}
		if vn.closes.Load() != 1 {
			t.Fatalf("closes = %d, want 1", vn.closes.Load())
		}
	}
}
