package password

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashAndVerify(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "hunter2")
	require.NoError(t, err)
	require.NotEqual(t, []byte("hunter2"), digest)

	ok, err := h.Verify(ctx, "hunter2", digest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify(ctx, "hunter3", digest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBcrypt_DefaultCost(t *testing.T) {
	digest, err := NewBcrypt(0).Hash(context.Background(), "x")
	require.NoError(t, err)

	cost, err := bcrypt.Cost(digest)
	require.NoError(t, err)
	require.Equal(t, DefaultCost, cost)
}

func TestBcrypt_LongSecretTruncated(t *testing.T) {
	h := NewBcrypt(bcrypt.MinCost)
	ctx := context.Background()
	long := strings.Repeat("a", 100)

	digest, err := h.Hash(ctx, long)
	require.NoError(t, err)

	ok, err := h.Verify(ctx, strings.Repeat("a", 72), digest)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBcrypt_VerifyMalformedDigest(t *testing.T) {
	_, err := NewBcrypt(bcrypt.MinCost).Verify(context.Background(), "x", []byte("not a digest"))
	require.Error(t, err)
}

func TestBcrypt_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBcrypt(bcrypt.MinCost).Hash(ctx, "x")
	require.True(t, errors.Is(err, context.Canceled), "err=%v", err)
}
