package session

import (
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M4GNV5/iso15118/internal/message"
)

func TestStorePutGetDeleteWithoutDurable(t *testing.T) {
	st, err := NewStore("", nil, nil)
	require.NoError(t, err)
	defer st.Close()

	sess := New([8]byte{0xAB}, RoleSECC, message.DialectISO2, "SessionSetup")
	require.NoError(t, st.Put(sess))

	got, ok := st.Get(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	st.Delete(sess.ID)
	_, ok = st.Get(sess.ID)
	assert.False(t, ok)
}

func TestStoreListReturnsAllSessions(t *testing.T) {
	st, err := NewStore("", nil, nil)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Put(New([8]byte{1}, RoleSECC, message.DialectISO2, "SessionSetup")))
	require.NoError(t, st.Put(New([8]byte{2}, RoleSECC, message.DialectISO2, "SessionSetup")))

	assert.Len(t, st.List(), 2)
}

func TestStorePersistsThroughDurableBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	st, err := NewStore(dir, nil, nil)
	require.NoError(t, err)
	defer st.Close()

	sess := New([8]byte{0xCD}, RoleSECC, message.DialectISO2, "SessionSetup")
	require.NoError(t, st.Put(sess))

	got, ok := st.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got.ID)
	require.NoError(t, st.durable.View(func(txn *badger.Txn) error {
		_, err := txn.Get(sess.ID[:])
		return err
	}))

	st.Delete(sess.ID)
	_, ok = st.Get(sess.ID)
	assert.False(t, ok)
	err = st.durable.View(func(txn *badger.Txn) error {
		_, err := txn.Get(sess.ID[:])
		return err
	})
	assert.ErrorIs(t, err, badger.ErrKeyNotFound)
}
