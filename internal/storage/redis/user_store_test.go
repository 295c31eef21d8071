package redis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Key layout is load-bearing: UpdateFields and GetUser must address the same
// hashes, and credential keys must normalize the email.
func TestKeyLayout(t *testing.T) {
	t.Parallel()

	require.Equal(t, "user:u1", metaKey("u1"))
	require.Equal(t, "user:u1:progress", progressKey("u1"))
	require.Equal(t, "user:u1:completed", completedKey("u1"))
	require.Equal(t, "cred:a@example.com", credKey(" A@Example.com "))
}

func TestBoolField(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1", boolField(true))
	require.Equal(t, "0", boolField(false))
}
