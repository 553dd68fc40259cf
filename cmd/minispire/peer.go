//go:build darwin || freebsd || linux || netbsd || openbsd || (solaris && cgo)

package main

import (
	"net"

	"github.com/cofide/unixcred/pkg/peercred"
)

func describePeer(conn *net.UnixConn) (string, error) {
	ident, err := peercred.GetPeerPIDIDs(conn)
	if err != nil {
		return "", err
	}
	return ident.String(), nil
}
