//go:build linux || netbsd || openbsd

package peercred

import (
	"fmt"
	"math"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PID returns the pid of the process that connected the socket. That process
// may have exited since, and the pid may have been reused.
func (u Ucred) PID() int32 { return u.pid }

// UID returns the peer's effective user id.
func (u Ucred) UID() uint32 { return u.uid }

// GID returns the peer's effective group id.
func (u Ucred) GID() uint32 { return u.gid }

// Identity returns the platform independent view of u.
func (u Ucred) Identity() PeerIdentity {
	return PeerIdentity{UID: u.uid, GID: u.gid, pid: u.pid, hasPID: true}
}

func (u Ucred) String() string {
	return fmt.Sprintf("Ucred{pid: %d, uid: %d, gid: %d}", u.pid, u.uid, u.gid)
}

// GetUcred returns the credentials of the peer of conn.
func GetUcred(conn syscall.Conn) (Ucred, error) {
	var cred Ucred
	err := control(conn, func(fd int) (err error) {
		cred, err = getUcred(fd)
		return err
	})
	if err != nil {
		return Ucred{}, err
	}
	return cred, nil
}

func getUcred(fd int) (Ucred, error) {
	var cred Ucred
	n, err := getsockopt(fd, peercredLevel, peercredOption, unsafe.Pointer(&cred), unsafe.Sizeof(cred))
	if err != nil {
		return Ucred{}, err
	}

	if !cred.valid(n) {
		return Ucred{}, unix.EINVAL
	}
	return cred, nil
}

// valid reports whether u, of which the kernel wrote n bytes, identifies a
// peer. Some kernels answer for sockets without a peer with a zero pid and
// all-ones ids instead of failing.
func (u Ucred) valid(n int) bool {
	return n == int(unsafe.Sizeof(u)) &&
		u.pid != 0 &&
		u.uid != math.MaxUint32 &&
		u.gid != math.MaxUint32
}
