//go:build darwin || dragonfly || freebsd || (solaris && cgo)

package peercred

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

type hasher struct {
	d   *xxhash.Digest
	buf [4]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) uint32(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[:], v)
	h.d.Write(h.buf[:])
}

func (h *hasher) groups(groups []uint32) {
	h.uint32(uint32(len(groups)))
	for _, g := range groups {
		h.uint32(g)
	}
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}
