package peercred

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
	return cred.Identity(), nil
}

// PIDSupported reports whether GetPeerPIDIDs can return a pid on this
// system. A zero cr_pid is ambiguous on its own: it means "unknown" on
// FreeBSD 13+ and "not implemented" before that.
func PIDSupported() bool {
	return HasCrPID()
}
