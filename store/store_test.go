package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
)

func TestStorePutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id := crypto.HashData([]byte("page one"))
	data := DataUnit("hello page payload")

	require.NoError(t, s.Put(id, data))
	require.True(t, s.Has(id))

	got, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestStoreGetMissingReturnsFalse(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(crypto.HashData([]byte("never stored")))
	require.False(t, ok)
	require.False(t, s.Has(crypto.HashData([]byte("never stored"))))
}

func TestStorePutOverwritesExisting(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	id := crypto.HashData([]byte("page two"))
	require.NoError(t, s.Put(id, DataUnit("first")))
	require.NoError(t, s.Put(id, DataUnit("second")))

	got, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, DataUnit("second"), got)
}
