package remote

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazySessionConnectsOnce(t *testing.T) {
	opened := 0
	session := &fakeSession{}
	lazy := newLazySession(func() (*fakeSession, error) {
		opened++
		return session, nil
	})

	for i := 0; i < 3; i++ {
		got, err := lazy.get()
		require.NoError(t, err)
		assert.Same(t, session, got)
	}
	assert.Equal(t, 1, opened)
}

func TestLazySessionRetriesAfterFailure(t *testing.T) {
	opened := 0
	session := &fakeSession{}
	lazy := newLazySession(func() (*fakeSession, error) {
		opened++
		if opened == 1 {
			return nil, errors.New("connection refused")
		}
		return session, nil
	})

	_, err := lazy.get()
	require.EqualError(t, err, "connection refused")

	got, err := lazy.get()
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 2, opened)
}

func TestLazySessionClose(t *testing.T) {
	opened := 0
	lazy := newLazySession(func() (*fakeSession, error) {
		opened++
		return &fakeSession{}, nil
	})

	require.NoError(t, lazy.close(), "closing before use is a no-op")

	first, err := lazy.get()
	require.NoError(t, err)
	require.NoError(t, lazy.close())
	assert.Equal(t, 1, first.closed)

	second, err := lazy.get()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, opened)
}
