package peercred

func getPeerIDs(fd int) (uint32, uint32, error) {
	cred, err := getXucred(fd)
	if err != nil {
		return 0, 0, err
	}
	return cred.UID(), cred.GID(), nil
}
