//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package peercred

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// getsockopt reads option opt at level into the size bytes at val and returns
// the number of bytes the kernel wrote. A short write is not an error here;
// callers check the length against the record they expect.
func getsockopt(fd, level, opt int, val unsafe.Pointer, size uintptr) (int, error) {
	vallen := uint32(size)
	_, _, errno := unix.Syscall6(
		unix.SYS_GETSOCKOPT,
		uintptr(fd),
		uintptr(level),
		uintptr(opt),
		uintptr(val),
		uintptr(unsafe.Pointer(&vallen)),
		0,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(vallen), nil
}
