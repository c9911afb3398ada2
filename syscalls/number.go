package syscalls

import "fmt"

// Number identifies a system call.
type Number uint32

// System calls.
const (
	SysExit  Number = 3
	SysOpen  Number = 45
	SysDup2  Number = 48
	SysClose Number = 49
	SysRead  Number = 50
	SysWrite Number = 55
	SysLseek Number = 59
)

var numberNames = map[Number]string{
	SysExit:  "_exit",
	SysOpen:  "open",
	SysDup2:  "dup2",
	SysClose: "close",
	SysRead:  "read",
	SysWrite: "write",
	SysLseek: "lseek",
}

func (n Number) String() string {
	name, ok := numberNames[n]
	if ok {
		return name
	}
	return fmt.Sprintf("{Syscall %d}", uint32(n))
}

// Numbers returns every system call in ascending order.
func Numbers() []Number {
	return []Number{SysExit, SysOpen, SysDup2, SysClose, SysRead, SysWrite, SysLseek}
}
