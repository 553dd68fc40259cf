package peercred

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func getPeerIDs(fd int) (uint32, uint32, error) {
	cred, err := getXucred(fd)
	if err != nil {
		return 0, 0, err
	}
	return cred.UID(), cred.GID(), nil
}

func getPeerPIDIDs(fd int) (PeerIdentity, error) {
	cred, err := getXucred(fd)
	if err != nil {
		return PeerIdentity{}, err
	}
	pid, err := getPeerPID(fd)
	if err != nil {
		return PeerIdentity{}, err
	}

	ident := cred.Identity()
	ident.pid, ident.hasPID = pid, true
	return ident, nil
}

// getPeerPID reads LOCAL_PEERPID, which like LOCAL_PEERCRED is recorded at
// connect time.
func getPeerPID(fd int) (int32, error) {
	var pid int32
	n, err := getsockopt(fd, solLocal, unix.LOCAL_PEERPID, unsafe.Pointer(&pid), unsafe.Sizeof(pid))
	if err != nil {
		return 0, err
	}
	if n != int(unsafe.Sizeof(pid)) || pid == 0 {
		return 0, unix.EINVAL
	}
	return pid, nil
}

// PIDSupported reports whether GetPeerPIDIDs can return a pid on this
// system.
func PIDSupported() bool {
	return true
}
