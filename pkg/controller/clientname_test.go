package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientNameRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewClientName("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidClientName)
}

func TestNewClientNameRejectsEmbeddedNUL(t *testing.T) {
	t.Parallel()

	_, err := NewClientName("acme\x00corp")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidClientName)
}

func TestNewClientNameAcceptsValid(t *testing.T) {
	t.Parallel()

	name, err := NewClientName("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", name.String())
}
