//go:build linux || netbsd || openbsd

package peercred

func getPeerIDs(fd int) (uint32, uint32, error) {
	cred, err := getUcred(fd)
	if err != nil {
		return 0, 0, err
	}
	return cred.uid, cred.gid, nil
}

func getPeerPIDIDs(fd int) (PeerIdentity, error) {
	cred, err := getUcred(fd)
	if err != nil {
		return PeerIdentity{}, err
	}
	return cred.Identity(), nil
}

// PIDSupported reports whether GetPeerPIDIDs can return a pid on this
// system. The compact record always carries one.
func PIDSupported() bool {
	return true
}
