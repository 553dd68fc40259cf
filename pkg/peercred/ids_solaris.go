//go:build cgo

package peercred

func getPeerIDs(fd int) (uint32, uint32, error) {
	cred, err := getPeerUcred(fd)
	if err != nil {
		return 0, 0, err
	}
	defer cred.Close()
	return cred.EUID(), cred.EGID(), nil
}

func getPeerPIDIDs(fd int) (PeerIdentity, error) {
	cred, err := getPeerUcred(fd)
	if err != nil {
		return PeerIdentity{}, err
	}
	defer cred.Close()
	return cred.Identity(), nil
}

// PIDSupported reports whether GetPeerPIDIDs can return a pid on this
// system.
func PIDSupported() bool {
	return true
}
