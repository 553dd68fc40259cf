package peercred

import "golang.org/x/sys/unix"

// Ucred is the compact credential record of a socket peer, laid out as the
// kernel's struct ucred.
//
// A Ucred returned by GetUcred always has a non-zero pid and a uid and gid
// other than the all-ones "unset" value. Ucred values are comparable and can
// be used as map keys.
type Ucred struct {
	pid int32
	uid uint32
	gid uint32
}

const (
	peercredLevel  = unix.SOL_SOCKET
	peercredOption = unix.SO_PEERCRED
)
