package main

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePeer(t *testing.T) {
	desc, err := describePeer(dialTestSocket(t))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("uid=%d gid=%d pid=%d", os.Geteuid(), os.Getegid(), os.Getpid()), desc)
}
