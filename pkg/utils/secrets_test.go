package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(24)
	require.NoError(t, err)
	b, err := GenerateSecret(24)
	require.NoError(t, err)

	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
	require.Equal(t, a, url.PathEscape(a))
}
