//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || (solaris && cgo)

package peercred

import (
	"fmt"
	"syscall"
)

// PeerIdentity is the platform independent view of a peer's credentials.
type PeerIdentity struct {
	UID uint32
	GID uint32

	pid    int32
	hasPID bool
}

// PID returns the peer's process id. ok is false when the kernel did not
// report one.
func (p PeerIdentity) PID() (pid int32, ok bool) {
	return p.pid, p.hasPID
}

func (p PeerIdentity) String() string {
	if !p.hasPID {
		return fmt.Sprintf("uid=%d gid=%d pid=unknown", p.UID, p.GID)
	}
	return fmt.Sprintf("uid=%d gid=%d pid=%d", p.UID, p.GID, p.pid)
}

// GetPeerIDs returns the effective user and group id of the peer of conn.
func GetPeerIDs(conn syscall.Conn) (uid, gid uint32, err error) {
	err = control(conn, func(fd int) (err error) {
		uid, gid, err = getPeerIDs(fd)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}

// control runs f against the descriptor behind conn. The descriptor is only
// borrowed for the duration of f.
func control(conn syscall.Conn, f func(fd int) error) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var opErr error
	if err := rc.Control(func(fd uintptr) {
		opErr = f(int(fd))
	}); err != nil {
		return err
	}
	return opErr
}
