package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/M4GNV5/iso15118/internal/message"
)

func TestMirrorKeyFormat(t *testing.T) {
	assert.Equal(t, "iso15118:session:ab00000000000000", mirrorKey([8]byte{0xAB}))
}

func TestMirrorPutAndDeleteSwallowUnreachableRedis(t *testing.T) {
	// Port 1 is reserved and refuses connections immediately on loopback,
	// so these calls fail fast instead of waiting out the full timeout.
	m := NewMirror("127.0.0.1:1", nil)
	defer m.Close()

	sess := New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")

	assert.NotPanics(t, func() { m.Put(sess) })
	assert.NotPanics(t, func() { m.Delete(sess.ID) })
}

func TestNilMirrorIsANoop(t *testing.T) {
	var m *Mirror

	assert.NotPanics(t, func() {
		m.Put(New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup"))
		m.Delete([8]byte{1})
	})
	assert.NoError(t, m.Close())
}
