package peercred

// Ucred mirrors struct unpcbid; pid comes first.
type Ucred struct {
	pid int32
	uid uint32
	gid uint32
}

// LOCAL_PEEREID is read at the 0 (local) level.
const (
	peercredLevel  = 0
	peercredOption = 0x0003
)
