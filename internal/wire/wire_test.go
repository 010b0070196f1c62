package wire

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct {
	Seq  int    `cbor:"seq"`
	Text string `cbor:"text"`
}

func TestRoundTripSequence(t *testing.T) {
	a, b := net.Pipe()
	ca, cb := New(a), New(b)
	defer ca.Close()
	defer cb.Close()

	go func() {
		for i := range 3 {
			_ = ca.WriteMsg(ping{Seq: i, Text: "multi\nline"})
		}
		ca.Close()
	}()

	for i := range 3 {
		var got ping
		require.NoError(t, cb.ReadMsg(&got))
		assert.Equal(t, ping{Seq: i, Text: "multi\nline"}, got)
	}
	var extra ping
	assert.ErrorIs(t, cb.ReadMsg(&extra), io.EOF)
}

func TestReadGarbage(t *testing.T) {
	a, b := net.Pipe()
	cb := New(b)
	defer cb.Close()

	go func() {
		_, _ = a.Write([]byte{0xa1, 0x63, 's', 'e', 'q'})
		a.Close()
	}()
	var got ping
	assert.Error(t, cb.ReadMsg(&got))
}
