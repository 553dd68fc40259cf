//go:build freebsd

package spiredevserver

import (
	"net"

	"github.com/cofide/unixcred/pkg/peercred"
)

func readCallerInfo(conn *net.UnixConn) (CallerInfo, error) {
	cred, err := peercred.GetXucred(conn)
	if err != nil {
		return CallerInfo{}, err
	}
	return CallerInfo{
		Identity: cred.Identity(),
		Groups:   cred.Groups(),
	}, nil
}
