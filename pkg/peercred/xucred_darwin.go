package peercred

// Xucred mirrors the kernel's struct xucred. Use Equal and Hash to compare
// values.
type Xucred struct {
	version uint32
	uid     uint32
	ngroups int16
	groups  [xuNgroups]uint32
}

// Identity returns the platform independent view of x. struct xucred has no
// pid on macOS; GetPeerPIDIDs asks for it separately.
func (x Xucred) Identity() PeerIdentity {
	return PeerIdentity{UID: x.UID(), GID: x.GID()}
}

func (x Xucred) rawPID() int32 { return 0 }

func (x Xucred) pidField() string { return "" }
