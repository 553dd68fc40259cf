package peercred

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Xucred mirrors the kernel's struct xucred. Use Equal and Hash to compare
// values; == also compares unused group slots.
type Xucred struct {
	version uint32
	uid     uint32
	ngroups int16
	groups  [xuNgroups]uint32
	cr      xucredCr
}

// xucredCr is the trailing union of struct xucred: cr_pid shares storage with
// a pointer, so the slot is pointer sized and aligned.
type xucredCr struct {
	_   [0]uintptr
	pid int32
	_   [unsafe.Sizeof(uintptr(0)) - 4]byte
}

// crPIDOsreldate is the first __FreeBSD_version that fills in cr_pid.
const crPIDOsreldate = 1300030

// PID returns the pid of the process that connected the socket. ok is false
// when the kernel left the slot zero, which every kernel before FreeBSD 13
// does; see HasCrPID.
func (x Xucred) PID() (pid int32, ok bool) {
	if x.cr.pid == 0 {
		return 0, false
	}
	return x.cr.pid, true
}

// Identity returns the platform independent view of x.
func (x Xucred) Identity() PeerIdentity {
	pid, ok := x.PID()
	return PeerIdentity{UID: x.UID(), GID: x.GID(), pid: pid, hasPID: ok}
}

func (x Xucred) rawPID() int32 {
	return x.cr.pid
}

func (x Xucred) pidField() string {
	if pid, ok := x.PID(); ok {
		return fmt.Sprintf(", pid: %d", pid)
	}
	return ", pid: none"
}

// HasCrPID reports whether the running kernel records the peer pid in
// struct xucred.
func HasCrPID() bool {
	rel, err := unix.SysctlUint32("kern.osreldate")
	return err == nil && rel >= crPIDOsreldate
}
