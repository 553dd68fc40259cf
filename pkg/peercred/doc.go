// Package peercred reads the credentials of the process on the other end of a
// connected Unix domain stream socket.
//
// Three kernel interfaces are supported, one per platform family:
//
//   - Ucred: the compact {pid, uid, gid} record returned by SO_PEERCRED on
//     Linux and OpenBSD and by LOCAL_PEEREID on NetBSD.
//   - Xucred: the struct xucred returned by LOCAL_PEERCRED on FreeBSD,
//     DragonFly BSD and macOS, which carries up to 16 supplementary groups
//     (and, on FreeBSD 13+, the peer pid).
//   - PeerUcred: the opaque ucred_t handle returned by getpeerucred(3C) on
//     illumos and Solaris. It requires cgo.
//
// Most callers want GetPeerIDs or GetPeerPIDIDs, which pick whichever of the
// above the build target provides.
//
// The uid and gid reported are the effective ids of the peer, cached by the
// kernel when connect(2) or socketpair(2) was called. A peer that later drops
// privileges, or hands the descriptor to another process, is still reported
// with the original identity. The pid may have been reused by the time it is
// inspected.
//
// Errors are the errno values reported by the kernel (unix.EBADF,
// unix.ENOTSOCK, unix.ENOTCONN, ...). Replies that the kernel accepted but that
// fail validation are reported as unix.EINVAL. Datagram sockets and
// credentials passed as control messages are not supported.
package peercred
