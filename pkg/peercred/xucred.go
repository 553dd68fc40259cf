//go:build darwin || dragonfly || freebsd

package peercred

import (
	"fmt"
	"slices"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	solLocal      = 0
	localPeercred = 0x001

	xucredVersion = 0

	// xuNgroups is XU_NGROUPS, the capacity of cr_groups.
	xuNgroups = 16
)

// UID returns the peer's effective user id.
func (x Xucred) UID() uint32 {
	return x.uid
}

// GID returns the peer's effective group id, the first entry of the group
// list.
func (x Xucred) GID() uint32 {
	return x.groups[0]
}

// Groups returns the peer's group list, effective gid first. The kernel
// truncates it to the first 16 groups.
func (x Xucred) Groups() []uint32 {
	n := int(x.ngroups)
	if n < 0 {
		n = 0
	} else if n > xuNgroups {
		n = xuNgroups
	}
	return slices.Clone(x.groups[:n])
}

// Equal reports whether x and other describe the same uid, group list and
// (on FreeBSD) pid. Unused group slots are ignored.
func (x Xucred) Equal(other Xucred) bool {
	return x.uid == other.uid &&
		x.rawPID() == other.rawPID() &&
		slices.Equal(x.Groups(), other.Groups())
}

// Hash returns a hash of the fields compared by Equal.
func (x Xucred) Hash() uint64 {
	h := newHasher()
	h.uint32(x.uid)
	h.groups(x.Groups())
	h.uint32(uint32(x.rawPID()))
	return h.sum()
}

func (x Xucred) String() string {
	return fmt.Sprintf("Xucred{uid: %d, gid: %d, groups: %v%s}", x.UID(), x.GID(), x.Groups(), x.pidField())
}

// GetXucred returns the credentials of the peer of conn.
func GetXucred(conn syscall.Conn) (Xucred, error) {
	var cred Xucred
	err := control(conn, func(fd int) (err error) {
		cred, err = getXucred(fd)
		return err
	})
	if err != nil {
		return Xucred{}, err
	}
	return cred, nil
}

func getXucred(fd int) (Xucred, error) {
	var cred Xucred
	// The kernel refuses requests that do not carry the version it implements.
	cred.version = xucredVersion

	n, err := getsockopt(fd, solLocal, localPeercred, unsafe.Pointer(&cred), unsafe.Sizeof(cred))
	if err != nil {
		return Xucred{}, err
	}

	if !cred.valid(n) {
		return Xucred{}, unix.EINVAL
	}
	return cred, nil
}

// valid reports whether x, of which the kernel wrote n bytes, is a complete
// record of the version we asked for. At least one group is needed for GID.
func (x Xucred) valid(n int) bool {
	return n == int(unsafe.Sizeof(x)) &&
		x.version == xucredVersion &&
		x.ngroups >= 1 &&
		x.ngroups <= xuNgroups
}
