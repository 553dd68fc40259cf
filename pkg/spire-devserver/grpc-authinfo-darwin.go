//go:build darwin

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

	// macOS keeps the pid out of struct xucred.
	ident, err := peercred.GetPeerPIDIDs(conn)
	if err != nil {
		return CallerInfo{}, err
	}

	return CallerInfo{
		Identity: ident,
		Groups:   cred.Groups(),
	}, nil
}
