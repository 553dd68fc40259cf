//go:build darwin || freebsd || linux || netbsd || openbsd || (solaris && cgo)

package peercred

import "syscall"

// GetPeerPIDIDs returns the pid, effective uid and effective gid of the peer
// of conn.
//
// The pid is absent, rather than zero, when the kernel cannot report it. On
// FreeBSD that is the case for every socket before FreeBSD 13; PIDSupported
// tells the two situations apart ahead of time.
func GetPeerPIDIDs(conn syscall.Conn) (PeerIdentity, error) {
	var ident PeerIdentity
	err := control(conn, func(fd int) (err error) {
		ident, err = getPeerPIDIDs(fd)
		return err
	})
	if err != nil {
		return PeerIdentity{}, err
	}
	return ident, nil
}
