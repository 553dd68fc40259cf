package main

import (
	"fmt"
	"net"

	"github.com/cofide/unixcred/pkg/peercred"
)

// DragonFly does not report the pid of a unix socket peer.
func describePeer(conn *net.UnixConn) (string, error) {
	uid, gid, err := peercred.GetPeerIDs(conn)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("uid=%d gid=%d pid=unknown", uid, gid), nil
}
