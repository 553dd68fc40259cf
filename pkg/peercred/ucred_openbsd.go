package peercred

import "golang.org/x/sys/unix"

// Ucred mirrors struct sockpeercred; pid comes last.
type Ucred struct {
	uid uint32
	gid uint32
	pid int32
}

const (
	peercredLevel  = unix.SOL_SOCKET
	peercredOption = unix.SO_PEERCRED
)
