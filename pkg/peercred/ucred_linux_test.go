package peercred

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestUcredLayout(t *testing.T) {
	assert.EqualValues(t, unix.SizeofUcred, unsafe.Sizeof(Ucred{}))
	assert.EqualValues(t, 0, unsafe.Offsetof(Ucred{}.pid))
	assert.EqualValues(t, 4, unsafe.Offsetof(Ucred{}.uid))
	assert.EqualValues(t, 8, unsafe.Offsetof(Ucred{}.gid))
}
