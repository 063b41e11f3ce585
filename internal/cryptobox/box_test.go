package cryptobox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (*Box, *Box) {
	t.Helper()
	server, err := GenerateKeyPair()
	require.NoError(t, err)
	client, err := GenerateKeyPair()
	require.NoError(t, err)

	serverBox, err := NewBox(client.Public, server.Secret)
	require.NoError(t, err)
	clientBox, err := NewBox(server.Public, client.Secret)
	require.NoError(t, err)
	return serverBox, clientBox
}

func TestBoxBothSidesAgree(t *testing.T) {
	serverBox, clientBox := newPair(t)

	sealed, err := clientBox.Encrypt([]byte("hello server"))
	require.NoError(t, err)
	assert.Len(t, sealed, Overhead+len("hello server"))

	plain, err := serverBox.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello server", string(plain))

	sealed, err = serverBox.Encrypt([]byte("hello client"))
	require.NoError(t, err)
	plain, err = clientBox.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello client", string(plain))
}

func TestBoxNoncesDiffer(t *testing.T) {
	_, clientBox := newPair(t)
	a, err := clientBox.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := clientBox.Encrypt([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBoxRejectsTampering(t *testing.T) {
	serverBox, clientBox := newPair(t)
	sealed, err := clientBox.Encrypt([]byte("payload"))
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xFF
	_, err = serverBox.Decrypt(sealed)
	assert.Error(t, err)

	_, err = serverBox.Decrypt(sealed[:Overhead-1])
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestBoxWrongPeer(t *testing.T) {
	serverBox, _ := newPair(t)
	_, strangerBox := newPair(t)

	sealed, err := strangerBox.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, err = serverBox.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewBoxRejectsLowOrderKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	var zero [KeySize]byte
	_, err = NewBox(zero, kp.Secret)
	assert.Error(t, err)
}

func TestCellInstallOnce(t *testing.T) {
	first, _ := newPair(t)
	second, _ := newPair(t)

	var c Cell
	assert.False(t, c.Established())
	assert.Nil(t, c.Get())

	require.NoError(t, c.Install(first))
	assert.ErrorIs(t, c.Install(second), ErrAlreadyEstablished)
	assert.Same(t, first, c.Get())
	assert.True(t, c.Established())
}

func TestCellConcurrentInstallHasOneWinner(t *testing.T) {
	var c Cell
	const n = 32
	boxes := make([]*Box, n)
	for i := range boxes {
		boxes[i], _ = newPair(t)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []*Box
	)
	for _, b := range boxes {
		wg.Add(1)
		go func(b *Box) {
			defer wg.Done()
			if c.Install(b) == nil {
				mu.Lock()
				wins = append(wins, b)
				mu.Unlock()
			}
		}(b)
	}
	wg.Wait()

	require.Len(t, wins, 1)
	assert.Same(t, wins[0], c.Get())
}
