package network

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransportWithoutBind(t *testing.T) {
	tr, err := NewTransport("  ")
	require.NoError(t, err)
	assert.NotNil(t, tr.DialContext)
}

func TestResolveBindAddr(t *testing.T) {
	addr, err := resolveBindAddr("127.0.0.1")
	require.NoError(t, err)
	assert.True(t, addr.IP.Equal(net.ParseIP("127.0.0.1")))

	_, err = resolveBindAddr("no-such-interface0")
	assert.Error(t, err)

	_, err = NewTransport("no-such-interface0")
	assert.Error(t, err)
}
