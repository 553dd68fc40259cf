//go:build solaris && cgo

package peercred

/*
#include <stdlib.h>
#include <string.h>
#include <ucred.h>
*/
import "C"

import (
	"fmt"
	"runtime"
	"slices"
	"syscall"
	"unsafe"
)

// PeerUcred owns a ucred_t allocated by getpeerucred(3C). The object has no
// fixed layout and is only read through the ucred_get* accessors.
//
// A PeerUcred must not be copied; use Clone to duplicate it and Close to
// release it. Handles that are never closed are released by the garbage
// collector. Calling an accessor after Close panics.
type PeerUcred struct {
	cred *C.ucred_t
}

// GetPeerUcred returns the credentials of the peer of conn. The caller owns
// the returned handle.
func GetPeerUcred(conn syscall.Conn) (*PeerUcred, error) {
	var cred *PeerUcred
	err := control(conn, func(fd int) (err error) {
		cred, err = getPeerUcred(fd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cred, nil
}

func getPeerUcred(fd int) (*PeerUcred, error) {
	var cred *C.ucred_t
	rc, err := C.getpeerucred(C.int(fd), &cred)
	if rc < 0 {
		if err == nil {
			err = syscall.EINVAL
		}
		return nil, err
	}
	return newPeerUcred(cred), nil
}

func newPeerUcred(cred *C.ucred_t) *PeerUcred {
	u := &PeerUcred{cred: cred}
	runtime.SetFinalizer(u, (*PeerUcred).Close)
	return u
}

func (u *PeerUcred) ptr() *C.ucred_t {
	if u.cred == nil {
		panic("peercred: use of closed PeerUcred")
	}
	return u.cred
}

// EUID returns the peer's effective user id.
func (u *PeerUcred) EUID() uint32 {
	v := C.ucred_geteuid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// RUID returns the peer's real user id.
func (u *PeerUcred) RUID() uint32 {
	v := C.ucred_getruid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// SUID returns the peer's saved user id.
func (u *PeerUcred) SUID() uint32 {
	v := C.ucred_getsuid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// EGID returns the peer's effective group id.
func (u *PeerUcred) EGID() uint32 {
	v := C.ucred_getegid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// RGID returns the peer's real group id.
func (u *PeerUcred) RGID() uint32 {
	v := C.ucred_getrgid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// SGID returns the peer's saved group id.
func (u *PeerUcred) SGID() uint32 {
	v := C.ucred_getsgid(u.ptr())
	runtime.KeepAlive(u)
	return uint32(v)
}

// Groups returns a copy of the peer's complete supplementary group list.
func (u *PeerUcred) Groups() []uint32 {
	var groups *C.gid_t
	n := C.ucred_getgroups(u.ptr(), &groups)
	defer runtime.KeepAlive(u)

	if n <= 0 || groups == nil {
		return []uint32{}
	}
	return slices.Clone(unsafe.Slice((*uint32)(unsafe.Pointer(groups)), int(n)))
}

// PID returns the peer's process id. ok is false when the credential does not
// carry one.
func (u *PeerUcred) PID() (pid int32, ok bool) {
	v := C.ucred_getpid(u.ptr())
	runtime.KeepAlive(u)
	if v == -1 {
		return 0, false
	}
	return int32(v), true
}

// Identity returns the platform independent view of u.
func (u *PeerUcred) Identity() PeerIdentity {
	pid, ok := u.PID()
	return PeerIdentity{UID: u.EUID(), GID: u.EGID(), pid: pid, hasPID: ok}
}

// Equal reports whether every accessor of u and other agrees.
func (u *PeerUcred) Equal(other *PeerUcred) bool {
	upid, uok := u.PID()
	opid, ook := other.PID()
	return upid == opid && uok == ook &&
		u.EUID() == other.EUID() &&
		u.RUID() == other.RUID() &&
		u.SUID() == other.SUID() &&
		u.EGID() == other.EGID() &&
		u.RGID() == other.RGID() &&
		u.SGID() == other.SGID() &&
		slices.Equal(u.Groups(), other.Groups())
}

// Hash returns a hash of every accessor of u.
func (u *PeerUcred) Hash() uint64 {
	h := newHasher()
	pid, ok := u.PID()
	if !ok {
		pid = -1
	}
	h.uint32(uint32(pid))
	h.uint32(u.EUID())
	h.uint32(u.RUID())
	h.uint32(u.SUID())
	h.uint32(u.EGID())
	h.uint32(u.RGID())
	h.uint32(u.SGID())
	h.groups(u.Groups())
	return h.sum()
}

// Clone returns an independent copy of u. The copy has to be closed on its
// own. ucred_t objects vary in size, so the copy is sized with ucred_size(3C);
// running out of memory aborts the program.
func (u *PeerUcred) Clone() *PeerUcred {
	size := C.ucred_size()
	// ucred_t is allocated with malloc(3C) and released with free(3C) by
	// ucred_free, so a malloc'd copy can be handed to ucred_free as well.
	p := C.malloc(size)
	C.memcpy(p, unsafe.Pointer(u.ptr()), size)
	runtime.KeepAlive(u)
	return newPeerUcred((*C.ucred_t)(p))
}

// Close releases the ucred_t. It is safe to call more than once but not
// concurrently.
func (u *PeerUcred) Close() error {
	if u.cred == nil {
		return nil
	}
	C.ucred_free(u.cred)
	u.cred = nil
	runtime.SetFinalizer(u, nil)
	return nil
}

func (u *PeerUcred) String() string {
	pid := "none"
	if v, ok := u.PID(); ok {
		pid = fmt.Sprint(v)
	}
	return fmt.Sprintf("PeerUcred{pid: %s, euid: %d, ruid: %d, suid: %d, egid: %d, rgid: %d, sgid: %d, groups: %v}",
		pid, u.EUID(), u.RUID(), u.SUID(), u.EGID(), u.RGID(), u.SGID(), u.Groups())
}
