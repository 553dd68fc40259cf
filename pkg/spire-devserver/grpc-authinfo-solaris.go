//go:build solaris && cgo

package spiredevserver

import (
	"net"

	"github.com/cofide/unixcred/pkg/peercred"
)

func readCallerInfo(conn *net.UnixConn) (CallerInfo, error) {
	cred, err := peercred.GetPeerUcred(conn)
	if err != nil {
		return CallerInfo{}, err
	}
	defer cred.Close()

	return CallerInfo{
		Identity: cred.Identity(),
		Groups:   cred.Groups(),
	}, nil
}
