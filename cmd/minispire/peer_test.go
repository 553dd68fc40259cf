//go:build darwin || freebsd || linux || netbsd || openbsd || (solaris && cgo)

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestSocket(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "ms")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	lis, err := net.Listen("unix", filepath.Join(dir, "peer.sock"))
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	go func() {
		if conn, err := lis.Accept(); err == nil {
			defer conn.Close()
			conn.Read(make([]byte, 1))
		}
	}()

	conn, err := net.Dial("unix", lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn.(*net.UnixConn)
}

func TestDescribePeerIDs(t *testing.T) {
	desc, err := describePeer(dialTestSocket(t))
	require.NoError(t, err)
	assert.Contains(t, desc, fmt.Sprintf("uid=%d gid=%d pid=", os.Geteuid(), os.Getegid()))
}
